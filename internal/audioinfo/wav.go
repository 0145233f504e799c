package audioinfo

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

func readWAVInfo(file *os.File) (Info, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return Info{}, fmt.Errorf("%w: malformed WAV header", ErrInvalidFile)
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return Info{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidFile, decoder.BitDepth)
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return Info{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidFile, decoder.NumChans)
	}

	if decoder.SampleRate == 0 {
		return Info{}, fmt.Errorf("%w: zero sample rate", ErrInvalidFile)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return Info{}, err
	}

	// Sample count approximated from the file size. Recorders pad WAV
	// headers inconsistently, the few header bytes this overcounts are
	// noise against hours of ultrasonic audio.
	bytesPerSample := int(decoder.BitDepth / 8)
	totalSamples := int(fileInfo.Size()) / bytesPerSample / int(decoder.NumChans)

	return Info{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}
