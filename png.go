package hdrbake

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"math"

	"github.com/jcgregorio/slog"
	"github.com/pkg/errors"

	"github.com/vearutop/hdrbake/internal/pngx"
)

const warnPNGNegative = "Output chromaticities contain negative coordinates, PNG clamps these to 0."

// RGBA returns the raster as an opaque image.
func (d *DisplayImage) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.Width, d.Height))
	for i := 0; i < d.Width*d.Height; i++ {
		img.Pix[i*4] = d.Pix[i*3]
		img.Pix[i*4+1] = d.Pix[i*3+1]
		img.Pix[i*4+2] = d.Pix[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

// EncodePNG writes an 8-bit RGB PNG with gAMA and cHRM chunks describing
// the display encoding.
func EncodePNG(d *DisplayImage, log slog.Logger) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, d.RGBA()); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}

	if d.Chromaticities.HasNegative() {
		log.Warning(warnPNGNegative)
	}

	gama := make([]byte, 4)
	binary.BigEndian.PutUint32(gama, pngFixed(1/d.Gamma))

	ch := d.Chromaticities
	chrm := make([]byte, 0, 32)
	for _, v := range []float32{ch.White.X, ch.White.Y, ch.Red.X, ch.Red.Y, ch.Green.X, ch.Green.Y, ch.Blue.X, ch.Blue.Y} {
		chrm = binary.BigEndian.AppendUint32(chrm, pngFixed(v))
	}

	out, err := pngx.InsertAfter(buf.Bytes(), "IHDR",
		pngx.Chunk{Type: "gAMA", Data: gama},
		pngx.Chunk{Type: "cHRM", Data: chrm},
	)
	if err != nil {
		return nil, errors.Wrap(err, "png chunks")
	}
	return out, nil
}

// pngFixed scales by 100000, clamping negatives to 0.
func pngFixed(v float32) uint32 {
	if !(v > 0) {
		return 0
	}
	return uint32(math.Round(float64(v) * 100000))
}
