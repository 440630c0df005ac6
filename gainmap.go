package hdrbake

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// flatGainCode is emitted for every sample when all gains are equal.
const flatGainCode = 128

// GainOffsets are added to SDR and HDR luminance before taking their ratio.
type GainOffsets struct {
	SDR float32
	HDR float32
}

// DefaultGainOffsets returns 1/64 for both offsets.
func DefaultGainOffsets() GainOffsets {
	return GainOffsets{SDR: DefaultOffsetSDR, HDR: DefaultOffsetHDR}
}

// GainField holds per-pixel linear gains and the log2 range over all
// finite gains.
type GainField struct {
	Gains   []float32
	MinLog2 float32
	MaxLog2 float32
}

// Flat reports whether the log2 range is empty.
func (f *GainField) Flat() bool {
	return !(f.MaxLog2 > f.MinLog2)
}

// GainMap is an 8-bit single-channel recovery map with its encoding range.
type GainMap struct {
	Width   int
	Height  int
	Pix     []uint8
	MinLog2 float32
	MaxLog2 float32
	Gamma   float32
}

// PixelGain returns the ratio between the HDR luminance of p and the
// luminance of p scaled by factor and clamped to [0, 1].
func PixelGain(p Pixel, factor float32, w LuminanceWeights, off GainOffsets) float32 {
	sdr := Pixel{
		R: clamp01(p.R * factor),
		G: clamp01(p.G * factor),
		B: clamp01(p.B * factor),
	}
	hdrLum := w.Luminance(p)
	sdrLum := w.Luminance(sdr)
	return (hdrLum + off.HDR) / (sdrLum + off.SDR)
}

// ComputeGainField computes the gain of every pixel and the global log2
// range. Bands of pixels are processed concurrently and reduced after all of
// them finish. Non-finite gains are kept in Gains but excluded from the range.
func ComputeGainField(ctx context.Context, pix []Pixel, w LuminanceWeights, factor float32, off GainOffsets, workers int) (*GainField, error) {
	bands := splitBands(len(pix), workers)
	mins := make([]float32, len(bands))
	maxs := make([]float32, len(bands))
	gains := make([]float32, len(pix))

	err := forEachBand(ctx, bands, func(i int, b band) error {
		lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
		for j := b.lo; j < b.hi; j++ {
			g := PixelGain(pix[j], factor, w, off)
			gains[j] = g
			l := log2f(g)
			if !isFinite(l) {
				continue
			}
			if l < lo {
				lo = l
			}
			if l > hi {
				hi = l
			}
		}
		mins[i], maxs[i] = lo, hi
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "gain pass")
	}

	f := &GainField{
		Gains:   gains,
		MinLog2: float32(math.Inf(1)),
		MaxLog2: float32(math.Inf(-1)),
	}
	for i := range bands {
		if mins[i] < f.MinLog2 {
			f.MinLog2 = mins[i]
		}
		if maxs[i] > f.MaxLog2 {
			f.MaxLog2 = maxs[i]
		}
	}
	if f.MinLog2 > f.MaxLog2 {
		// No finite gain at all.
		f.MinLog2, f.MaxLog2 = 0, 0
	}
	return f, nil
}

// EncodeRecovery maps one gain into an 8-bit code using the log2 range and
// map gamma. Non-finite gains encode to 0.
func EncodeRecovery(gain, minLog2, maxLog2, mapGamma float32) uint8 {
	l := log2f(gain)
	if !isFinite(l) {
		return 0
	}
	if !(maxLog2 > minLog2) {
		return flatGainCode
	}
	n := clamp01((l - minLog2) / (maxLog2 - minLog2))
	return toByte(powf(n, mapGamma))
}

// Encode quantizes the field into a gain map of the given dimensions.
func (f *GainField) Encode(ctx context.Context, width, height int, mapGamma float32, workers int) (*GainMap, error) {
	if width*height != len(f.Gains) {
		return nil, errors.Errorf("gain field holds %d samples, want %dx%d", len(f.Gains), width, height)
	}
	if mapGamma <= 0 {
		return nil, errors.Wrapf(ErrConfig, "map gamma %v", mapGamma)
	}
	gm := &GainMap{
		Width:   width,
		Height:  height,
		Pix:     make([]uint8, len(f.Gains)),
		MinLog2: f.MinLog2,
		MaxLog2: f.MaxLog2,
		Gamma:   mapGamma,
	}
	err := forEachBand(ctx, splitBands(len(f.Gains), workers), func(_ int, b band) error {
		for i := b.lo; i < b.hi; i++ {
			gm.Pix[i] = EncodeRecovery(f.Gains[i], f.MinLog2, f.MaxLog2, mapGamma)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode pass")
	}
	return gm, nil
}

// Gray returns the map as an image.
func (g *GainMap) Gray() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// Downscale returns a copy reduced by an integer factor. Factors below 2
// return g unchanged.
func (g *GainMap) Downscale(scale int) *GainMap {
	if scale < 2 {
		return g
	}
	w, h := g.Width/scale, g.Height/scale
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := resize.Resize(uint(w), uint(h), g.Gray(), resize.Bilinear)

	out := *g
	out.Width, out.Height = w, h
	out.Pix = make([]uint8, w*h)
	b := img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return &out
}
