package hdrbake

const (
	// DefaultDisplayGamma is the transfer gamma of the SDR rendition.
	DefaultDisplayGamma = 2.4
	// DefaultMapGamma is the gamma used to encode the gain map.
	DefaultMapGamma = 1.0
	// DefaultOffsetSDR is added to SDR luminance before taking the gain ratio.
	DefaultOffsetSDR = 1.0 / 64.0
	// DefaultOffsetHDR is added to HDR luminance before taking the gain ratio.
	DefaultOffsetHDR = 1.0 / 64.0
)

const (
	defaultQuality        = 100
	defaultGainMapQuality = 100
	defaultGainMapScale   = 1
)

const (
	jpegrVersion = "1.0"
)

// float32Epsilon is the machine epsilon of float32.
const float32Epsilon = 1.1920929e-07
