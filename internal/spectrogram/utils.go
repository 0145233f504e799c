package spectrogram

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

// Pixel widths for the supported render sizes.
const (
	// sizeSmallPx fits recording lists and search results.
	sizeSmallPx = 400

	// sizeMediumPx is the standard detail view width (default).
	sizeMediumPx = 800

	// sizeLargePx suits side-by-side session comparison.
	sizeLargePx = 1000

	// sizeExtraLargePx is full quality for close inspection.
	sizeExtraLargePx = 1200
)

// validSizes maps size strings to pixel widths (single source of truth).
var validSizes = map[string]int{
	"sm": sizeSmallPx,
	"md": sizeMediumPx,
	"lg": sizeLargePx,
	"xl": sizeExtraLargePx,
}

// SizeToPixels converts a size string to a pixel width.
//
// Valid sizes: sm (400px), md (800px), lg (1000px), xl (1200px).
func SizeToPixels(size string) (int, error) {
	width, ok := validSizes[size]
	if !ok {
		return 0, errors.Newf("invalid size (valid sizes: sm, md, lg, xl)").
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Context("operation", "size_to_pixels").
			Context("size", size).
			Build()
	}
	return width, nil
}

// PixelsToSize converts a pixel width back to its size string.
func PixelsToSize(width int) (string, error) {
	for size, w := range validSizes {
		if w == width {
			return size, nil
		}
	}
	return "", errors.Newf("invalid width: no matching size").
		Component("spectrogram").
		Category(errors.CategoryValidation).
		Context("operation", "pixels_to_size").
		Context("width", width).
		Build()
}

// GetValidSizes returns the valid size strings in deterministic order.
func GetValidSizes() []string {
	sizes := slices.Collect(maps.Keys(validSizes))
	slices.Sort(sizes)
	return sizes
}

// PathFor maps an audio file reference to the media store reference of its
// rendered spectrogram. Images for every source land under the spectrograms/
// subtree of the media area, with size and raw mode encoded in the name:
//
//	uploads/ab12_call.wav with width=800            -> spectrograms/ab12_call.md.png
//	uploads/ab12_call.wav with width=400, raw=true  -> spectrograms/ab12_call.sm.raw.png
func PathFor(audioRef mediastore.Ref, width int, raw bool) (mediastore.Ref, error) {
	sizeStr, err := PixelsToSize(width)
	if err != nil {
		return mediastore.Ref{}, err
	}

	name := path.Base(audioRef.Rel)
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return mediastore.Ref{}, errors.Newf("audio path has no extension").
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Context("operation", "spectrogram_path").
			Context("audio_path", audioRef.String()).
			Build()
	}

	suffix := fmt.Sprintf(".%s", sizeStr)
	if raw {
		suffix += ".raw"
	}
	suffix += ".png"

	base := strings.TrimSuffix(name, ext)
	return mediastore.Ref{
		Area: mediastore.AreaMedia,
		Rel:  path.Join(conf.SpectrogramsDirName, base+suffix),
	}, nil
}
