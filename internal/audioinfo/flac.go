package audioinfo

import (
	"fmt"
	"os"

	"github.com/tphakala/flac"
)

func readFLACInfo(file *os.File) (Info, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if decoder.SampleRate == 0 {
		return Info{}, fmt.Errorf("%w: zero sample rate", ErrInvalidFile)
	}

	return Info{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}
