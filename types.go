package hdrbake

import "github.com/pkg/errors"

var (
	// ErrConfig reports an invalid invocation or encoding profile.
	ErrConfig = errors.New("invalid configuration")
	// ErrDecode reports a malformed input image.
	ErrDecode = errors.New("decode failed")
)

// Pixel is a linear-light RGB sample.
type Pixel struct {
	R, G, B float32
}

// LinearImage stores a linear-light image in row-major order.
// Chromaticities is nil when the source carried no color space description.
type LinearImage struct {
	Width          int
	Height         int
	Pix            []Pixel
	Chromaticities *Chromaticities
}

// NewLinearImage allocates a black image.
func NewLinearImage(width, height int) *LinearImage {
	return &LinearImage{
		Width:  width,
		Height: height,
		Pix:    make([]Pixel, width*height),
	}
}

// Set stores p at x, y.
func (h *LinearImage) Set(x, y int, p Pixel) {
	h.Pix[y*h.Width+x] = p
}

// DisplayImage is an 8-bit display-referred RGB raster.
type DisplayImage struct {
	Width  int
	Height int
	// Pix holds interleaved R, G, B bytes.
	Pix            []uint8
	Chromaticities Chromaticities
	Gamma          float32
}
