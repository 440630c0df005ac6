package hdrbake

import (
	"context"
	"math"

	"github.com/jcgregorio/slog"
	"github.com/pkg/errors"
)

const (
	warnAssumeRec709 = "Assuming Rec. 709 (sRGB) color space for input EXR."
	warnGamut        = "Output color space is smaller than input, check output for any artifacts."
)

// PipelineOptions carries the color space and exposure overrides of a run.
// Nil fields mean "not set".
type PipelineOptions struct {
	InputSpace  *Chromaticities
	InputWhite  *XyCoord
	OutputSpace *Chromaticities
	OutputWhite *XyCoord
	Exposure    *float32
}

// ResolvedSpaces is the outcome of ResolveSpaces.
type ResolvedSpaces struct {
	Input  Chromaticities
	Output Chromaticities
	// Convert is set when pixels need a matrix transform into Output.
	Convert bool
}

// ResolveSpaces picks the read and write chromaticities.
//
// The read space is the explicit override, else the embedded description,
// else Rec. 709 with a warning. A white override is applied on top. The write
// space is the output override or a copy of the read space, with its own
// white override.
func ResolveSpaces(opts PipelineOptions, embedded *Chromaticities, log slog.Logger) ResolvedSpaces {
	var in Chromaticities
	switch {
	case opts.InputSpace != nil:
		in = *opts.InputSpace
	case embedded != nil:
		in = *embedded
	default:
		log.Warning(warnAssumeRec709)
		in = rec709
	}
	if opts.InputWhite != nil {
		in = in.WithWhite(*opts.InputWhite)
	}

	out := in
	if opts.OutputSpace != nil {
		out = *opts.OutputSpace
	}
	if opts.OutputWhite != nil {
		out = out.WithWhite(*opts.OutputWhite)
	}

	return ResolvedSpaces{Input: in, Output: out, Convert: !out.Equal(in)}
}

// ExposureFactor returns 2^ev, or 1 when ev is nil.
func ExposureFactor(ev *float32) float32 {
	if ev == nil {
		return 1
	}
	return exp2f(*ev)
}

// ConvertPixels transforms every pixel into the output space in place.
// A warning is logged once when the output gamut does not contain the input.
func ConvertPixels(ctx context.Context, pix []Pixel, spaces ResolvedSpaces, workers int, log slog.Logger) error {
	if !spaces.Convert {
		return nil
	}
	m, err := spaces.Input.ConversionMatrix(spaces.Output)
	if err != nil {
		return err
	}
	if !spaces.Output.Contains(spaces.Input) {
		log.Warning(warnGamut)
	}
	log.Debugf("Converting %d pixels with matrix %v", len(pix), m)

	return forEachBand(ctx, splitBands(len(pix), workers), func(_ int, b band) error {
		for i := b.lo; i < b.hi; i++ {
			pix[i] = m.Apply(pix[i])
		}
		return nil
	})
}

// QuantizeChannel maps a linear value to an 8-bit display code value:
// scale by factor, clamp to [0, 1], gamma encode, round.
func QuantizeChannel(v, factor, gamma float32) uint8 {
	s := v * factor
	if math.IsNaN(float64(s)) {
		return 0
	}
	return toByte(GammaEncode(clamp01(s), gamma))
}

// RenderDisplay produces interleaved 8-bit RGB from linear pixels.
func RenderDisplay(ctx context.Context, pix []Pixel, factor, gamma float32, workers int) ([]uint8, error) {
	if gamma <= 0 {
		return nil, errors.Wrapf(ErrConfig, "display gamma %v", gamma)
	}
	out := make([]uint8, len(pix)*3)
	err := forEachBand(ctx, splitBands(len(pix), workers), func(_ int, b band) error {
		for i := b.lo; i < b.hi; i++ {
			p := pix[i]
			out[i*3] = QuantizeChannel(p.R, factor, gamma)
			out[i*3+1] = QuantizeChannel(p.G, factor, gamma)
			out[i*3+2] = QuantizeChannel(p.B, factor, gamma)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
