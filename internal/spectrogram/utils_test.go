package spectrogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/mediastore"
)

func TestSizeToPixels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      string
		wantWidth int
		wantErr   bool
	}{
		{name: "small", size: "sm", wantWidth: 400},
		{name: "medium", size: "md", wantWidth: 800},
		{name: "large", size: "lg", wantWidth: 1000},
		{name: "extra large", size: "xl", wantWidth: 1200},
		{name: "unknown size", size: "huge", wantErr: true},
		{name: "empty size", size: "", wantErr: true},
		{name: "uppercase size", size: "SM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			width, err := SizeToPixels(tt.size)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, width)
		})
	}
}

func TestPixelsToSizeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range GetValidSizes() {
		width, err := SizeToPixels(size)
		require.NoError(t, err)

		got, err := PixelsToSize(width)
		require.NoError(t, err)
		assert.Equal(t, size, got)
	}

	_, err := PixelsToSize(999)
	assert.Error(t, err, "width without a size mapping should be rejected")
}

func TestGetValidSizes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"lg", "md", "sm", "xl"}, GetValidSizes())
}

func TestPathFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		audioRef mediastore.Ref
		width    int
		raw      bool
		wantRel  string
		wantErr  bool
	}{
		{
			name:     "medium size",
			audioRef: mediastore.Ref{Area: mediastore.AreaMedia, Rel: "uploads/ab12_call.wav"},
			width:    800,
			wantRel:  "spectrograms/ab12_call.md.png",
		},
		{
			name:     "small raw",
			audioRef: mediastore.Ref{Area: mediastore.AreaMedia, Rel: "uploads/ab12_call.wav"},
			width:    400,
			raw:      true,
			wantRel:  "spectrograms/ab12_call.sm.raw.png",
		},
		{
			name:     "staged temp file renders into the media area",
			audioRef: mediastore.Ref{Area: mediastore.AreaTemp, Rel: "staged.flac"},
			width:    800,
			wantRel:  "spectrograms/staged.md.png",
		},
		{
			name:     "unsupported width",
			audioRef: mediastore.Ref{Area: mediastore.AreaMedia, Rel: "uploads/ab12_call.wav"},
			width:    640,
			wantErr:  true,
		},
		{
			name:     "no extension",
			audioRef: mediastore.Ref{Area: mediastore.AreaMedia, Rel: "uploads/noext"},
			width:    800,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := PathFor(tt.audioRef, tt.width, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mediastore.AreaMedia, ref.Area)
			assert.Equal(t, tt.wantRel, ref.Rel)
		})
	}
}
