package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jcgregorio/logger"
	"github.com/jcgregorio/slog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/vearutop/hdrbake"
)

// flag names
const (
	inputChromaticitiesFlagName  = "input-chromaticities"
	inputWhiteFlagName           = "input-white"
	exposureFlagName             = "exposure"
	outputChromaticitiesFlagName = "output-chromaticities"
	outputWhiteFlagName          = "output-white"
	pngFlagName                  = "png"
	jpgFlagName                  = "jpg"
	profileFlagName              = "profile"
	gainmapScaleFlagName         = "gainmap-scale"
	legacyMPFFlagName            = "legacy-mpf"
	workersFlagName              = "workers"
	verboseFlagName              = "verbose"
)

var convertFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    inputChromaticitiesFlagName,
		Aliases: []string{"i"},
		Usage:   "override input color space: " + strings.Join(hdrbake.ColorSpaceNames(), ", "),
	},
	&cli.StringFlag{
		Name:  inputWhiteFlagName,
		Usage: "override input white point: d50, d55, d65, d75, aces, dci or a temperature like 6500K",
	},
	&cli.Float64Flag{
		Name:    exposureFlagName,
		Aliases: []string{"e"},
		Usage:   "exposure adjustment in EV",
	},
	&cli.StringFlag{
		Name:    outputChromaticitiesFlagName,
		Aliases: []string{"o"},
		Usage:   "convert to this color space, defaults to the input space",
	},
	&cli.StringFlag{
		Name:  outputWhiteFlagName,
		Usage: "override output white point",
	},
	&cli.StringFlag{
		Name:  pngFlagName,
		Usage: "write an 8-bit PNG to this path",
	},
	&cli.StringFlag{
		Name:  jpgFlagName,
		Usage: "write an UltraHDR JPEG to this path",
	},
	&cli.StringFlag{
		Name:  profileFlagName,
		Usage: "JSON5 encoding profile",
	},
	&cli.IntFlag{
		Name:  gainmapScaleFlagName,
		Usage: "downscale the gain map by this factor",
	},
	&cli.BoolFlag{
		Name:  legacyMPFFlagName,
		Usage: "write the zero-offset little-endian MPF index",
	},
	&cli.IntFlag{
		Name:  workersFlagName,
		Usage: "parallel workers, 0 means all CPUs",
	},
	&cli.BoolFlag{
		Name:    verboseFlagName,
		Aliases: []string{"v"},
		Usage:   "include debug logs",
	},
}

func main() {
	app := &cli.App{
		Name:  "hdrbake",
		Usage: "bake linear OpenEXR images into PNG and UltraHDR JPEG",
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "convert an OpenEXR image",
				ArgsUsage: "input.exr",
				Flags:     convertFlags,
				Action:    runConvert,
			},
			{
				Name:      "inspect",
				Usage:     "print the container layout and gain map metadata of an UltraHDR JPEG",
				ArgsUsage: "input.jpg",
				Action:    runInspect,
			},
			{
				Name:      "detect",
				Usage:     "report whether a JPEG carries an UltraHDR gain map",
				ArgsUsage: "input.jpg",
				Action:    runDetect,
			},
			{
				Name:      "split",
				Usage:     "write the primary and gain map images of an UltraHDR JPEG",
				ArgsUsage: "input.jpg primary.jpg gainmap.jpg",
				Action:    runSplit,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fail(err)
	}
}

func newLogger(verbose bool) slog.Logger {
	return logger.NewFromOptions(&logger.Options{
		SyncWriter:   os.Stderr,
		IncludeDebug: verbose,
	})
}

func runConvert(c *cli.Context) error {
	log := newLogger(c.Bool(verboseFlagName))

	if c.NArg() != 1 {
		return errors.Wrap(hdrbake.ErrConfig, "expected exactly one input EXR path")
	}

	var exposure *float64
	if c.IsSet(exposureFlagName) {
		ev := c.Float64(exposureFlagName)
		exposure = &ev
	}
	pipeline, err := pipelineOptions(
		c.String(inputChromaticitiesFlagName), c.String(inputWhiteFlagName),
		c.String(outputChromaticitiesFlagName), c.String(outputWhiteFlagName),
		exposure,
	)
	if err != nil {
		return err
	}

	profile := hdrbake.DefaultProfile()
	if path := c.String(profileFlagName); path != "" {
		if profile, err = hdrbake.LoadProfile(path); err != nil {
			return err
		}
	}
	if c.IsSet(gainmapScaleFlagName) {
		profile.GainMapScale = c.Int(gainmapScaleFlagName)
	}
	if c.IsSet(legacyMPFFlagName) {
		profile.LegacyMPF = c.Bool(legacyMPFFlagName)
	}
	if c.IsSet(workersFlagName) {
		profile.Workers = c.Int(workersFlagName)
	}

	return hdrbake.ConvertFile(c.Context, c.Args().First(),
		hdrbake.Outputs{PNG: c.String(pngFlagName), JPEG: c.String(jpgFlagName)},
		hdrbake.Options{Pipeline: pipeline, Profile: profile, Logger: log},
	)
}

// pipelineOptions maps flag values to pipeline overrides. Empty strings and
// a nil exposure leave the corresponding override unset.
func pipelineOptions(in, inWhite, out, outWhite string, exposure *float64) (hdrbake.PipelineOptions, error) {
	var opts hdrbake.PipelineOptions

	space := func(name string) (*hdrbake.Chromaticities, error) {
		if name == "" {
			return nil, nil
		}
		cs, err := hdrbake.ParseColorSpace(name)
		if err != nil {
			return nil, err
		}
		ch := cs.Chromaticities()
		return &ch, nil
	}
	white := func(name string) (*hdrbake.XyCoord, error) {
		if name == "" {
			return nil, nil
		}
		xy, err := hdrbake.ParseIlluminant(name)
		if err != nil {
			return nil, err
		}
		return &xy, nil
	}

	var err error
	if opts.InputSpace, err = space(in); err != nil {
		return opts, err
	}
	if opts.InputWhite, err = white(inWhite); err != nil {
		return opts, err
	}
	if opts.OutputSpace, err = space(out); err != nil {
		return opts, err
	}
	if opts.OutputWhite, err = white(outWhite); err != nil {
		return opts, err
	}
	if exposure != nil {
		ev := float32(*exposure)
		opts.Exposure = &ev
	}
	return opts, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
