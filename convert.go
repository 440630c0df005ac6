package hdrbake

import (
	"bytes"
	"context"
	"image/jpeg"

	"github.com/dustin/go-humanize"
	"github.com/jcgregorio/logger"
	"github.com/jcgregorio/slog"
	"github.com/pkg/errors"
)

// Options configures Convert.
type Options struct {
	Pipeline PipelineOptions
	Profile  EncodingProfile
	// Logger receives warnings and progress, nil discards them.
	Logger slog.Logger
	// GainMap enables the gain map stages.
	GainMap bool
}

func (o *Options) log() slog.Logger {
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	return o.Logger
}

// Result is the in-memory outcome of Convert.
type Result struct {
	Spaces  ResolvedSpaces
	Factor  float32
	Display *DisplayImage
	// GainMap is nil unless Options.GainMap was set.
	GainMap *GainMap
	Offsets GainOffsets
}

// Convert runs the pixel pipeline over img. Pixels of img are transformed
// into the output space in place.
func Convert(ctx context.Context, img *LinearImage, opts Options) (*Result, error) {
	log := opts.log()
	p := opts.Profile
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if img.Width*img.Height != len(img.Pix) {
		return nil, errors.Wrapf(ErrDecode, "image holds %d pixels, want %dx%d", len(img.Pix), img.Width, img.Height)
	}

	spaces := ResolveSpaces(opts.Pipeline, img.Chromaticities, log)
	log.Debugf("Input chromaticities %+v, output %+v", spaces.Input, spaces.Output)
	if err := ConvertPixels(ctx, img.Pix, spaces, p.Workers, log); err != nil {
		return nil, errors.Wrap(err, "convert color space")
	}

	res := &Result{
		Spaces:  spaces,
		Factor:  ExposureFactor(opts.Pipeline.Exposure),
		Offsets: p.Offsets(),
	}

	rgb, err := RenderDisplay(ctx, img.Pix, res.Factor, p.DisplayGamma, p.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "render display image")
	}
	res.Display = &DisplayImage{
		Width:          img.Width,
		Height:         img.Height,
		Pix:            rgb,
		Chromaticities: spaces.Output,
		Gamma:          p.DisplayGamma,
	}

	if !opts.GainMap {
		return res, nil
	}

	weights, err := spaces.Output.LuminanceWeights()
	if err != nil {
		return nil, errors.Wrap(err, "luminance weights")
	}
	field, err := ComputeGainField(ctx, img.Pix, weights, res.Factor, res.Offsets, p.Workers)
	if err != nil {
		return nil, err
	}
	if field.Flat() {
		log.Infof("Gain map is flat at log2 gain %v", field.MinLog2)
	}
	log.Debugf("Gain map log2 range [%v, %v]", field.MinLog2, field.MaxLog2)

	res.GainMap, err = field.Encode(ctx, img.Width, img.Height, p.MapGamma, p.Workers)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EncodePNG encodes the display image as PNG.
func (r *Result) EncodePNG(log slog.Logger) ([]byte, error) {
	return EncodePNG(r.Display, log)
}

// EncodeUltraHDR encodes the display image and gain map as an UltraHDR
// JPEG with an ICC profile for the output space.
func (r *Result) EncodeUltraHDR(p EncodingProfile) ([]byte, error) {
	if r.GainMap == nil {
		return nil, errors.New("result has no gain map")
	}

	var primary bytes.Buffer
	if err := jpeg.Encode(&primary, r.Display.RGBA(), &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, errors.Wrap(err, "encode primary jpeg")
	}

	gm := r.GainMap.Downscale(p.GainMapScale)
	var secondary bytes.Buffer
	if err := jpeg.Encode(&secondary, gm.Gray(), &jpeg.Options{Quality: p.GainMapQuality}); err != nil {
		return nil, errors.Wrap(err, "encode gain map jpeg")
	}

	ch := r.Display.Chromaticities
	profile, err := BuildICCProfile(ch, r.Display.Gamma, ICCDescription(ch, r.Display.Gamma))
	if err != nil {
		return nil, err
	}

	return Join(primary.Bytes(), secondary.Bytes(), JoinOptions{
		ICCProfile: profile,
		GainMap:    NewGainMapXMP(gm, r.Offsets),
		LegacyMPF:  p.LegacyMPF,
	})
}

// Outputs names the files written by ConvertFile. Empty paths are skipped.
type Outputs struct {
	PNG  string
	JPEG string
}

// ConvertFile decodes an OpenEXR file and writes the requested outputs.
// Nothing is written unless every requested output encodes successfully.
func ConvertFile(ctx context.Context, input string, out Outputs, opts Options) error {
	log := opts.log()
	if out.PNG == "" && out.JPEG == "" {
		return errors.Wrap(ErrConfig, "no output requested, set a PNG and/or JPEG path")
	}

	img, err := DecodeEXRFile(input)
	if err != nil {
		return err
	}
	log.Infof("Decoded %s: %dx%d", input, img.Width, img.Height)

	opts.GainMap = out.JPEG != ""
	res, err := Convert(ctx, img, opts)
	if err != nil {
		return err
	}

	type file struct {
		path string
		data []byte
	}
	var files []file
	if out.PNG != "" {
		data, err := res.EncodePNG(log)
		if err != nil {
			return err
		}
		files = append(files, file{path: out.PNG, data: data})
	}
	if out.JPEG != "" {
		data, err := res.EncodeUltraHDR(opts.Profile)
		if err != nil {
			return err
		}
		files = append(files, file{path: out.JPEG, data: data})
	}

	for _, f := range files {
		if err := writeFileAtomic(f.path, f.data); err != nil {
			return err
		}
		log.Infof("Wrote %s (%s)", f.path, humanize.Bytes(uint64(len(f.data))))
	}
	return nil
}
