// conf/consts.go hard coded constants
package conf

const (
	DefaultWebPort = "8000" // REST API port behind the reverse proxy

	MaxStatusDetailLen = 500 // truncation limit for recording status detail

	DefaultZenodoAPIURL    = "https://zenodo.org/api"
	DefaultZenodoCommunity = "mousetube"

	UploadsDirName      = "uploads"      // uploaded audio clips under the media root
	SpectrogramsDirName = "spectrograms" // rendered spectrograms under the media root

	// Spectrogram style presets accepted by media.spectrogram.style.
	SpectrogramStyleDefault = "default" // colorful, dark background
	SpectrogramStylePrint   = "print"   // grayscale on light background for figures
	SpectrogramStyleDark    = "dark"    // high color saturation, dark background

	SpeciesCSV  = "species.csv"
	ProtocolCSV = "protocols.csv"
	MetadataCSV = "metadata.csv"
)
