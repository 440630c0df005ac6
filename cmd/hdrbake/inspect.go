package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"seehuhn.de/go/icc"

	"github.com/vearutop/hdrbake"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.Wrap(hdrbake.ErrConfig, "expected exactly one input JPEG path")
	}
	data, err := os.ReadFile(filepath.Clean(c.Args().First()))
	if err != nil {
		return err
	}
	ct, err := hdrbake.Split(data)
	if err != nil {
		return err
	}
	return describe(color.Output, ct, len(data))
}

func describe(w io.Writer, ct *hdrbake.Container, total int) error {
	fmt.Fprintf(w, "%s %s\n", heading("file"), humanize.Bytes(uint64(total)))
	fmt.Fprintf(w, "%s %s\n", heading("primary"), humanize.Bytes(uint64(len(ct.PrimaryJPEG))))
	fmt.Fprintf(w, "%s %s\n", heading("gain map"), humanize.Bytes(uint64(len(ct.GainMapJPEG))))

	if n, ok := ct.GainMapLength(); ok {
		fmt.Fprintf(w, "%s Item:Length=%d\n", heading("directory"), n)
		if n != len(ct.GainMapJPEG) {
			fmt.Fprintln(w, warn("  advertised gain map length does not match"))
		}
	}

	if ct.MPF != nil {
		fmt.Fprintf(w, "%s %d entries, %v\n", heading("mpf"), len(ct.MPF.Entries), ct.MPF.Order)
		for i, e := range ct.MPF.Entries {
			fmt.Fprintf(w, "  #%d attr=0x%06X size=%d offset=%d\n", i, e.Attribute, e.Size, e.Offset)
		}
		if sec, ok := ct.MPF.Secondary(); ok && sec.Size == 0 {
			fmt.Fprintln(w, warn("  legacy index without sizes"))
		}
	}

	if len(ct.ICCProfile) > 0 {
		p, err := icc.Decode(ct.ICCProfile)
		if err != nil {
			fmt.Fprintf(w, "%s %s\n", heading("icc"), warn(err.Error()))
		} else {
			fmt.Fprintf(w, "%s %v %v, %d tags\n", heading("icc"), p.Version, p.Class, len(p.TagData))
		}
	}

	m := ct.Meta
	fmt.Fprintf(w, "%s version=%s\n", heading("hdrgm"), m.Version)
	fmt.Fprintf(w, "  GainMapMin=%v GainMapMax=%v Gamma=%v\n", m.GainMapMin, m.GainMapMax, m.Gamma)
	fmt.Fprintf(w, "  OffsetSDR=%v OffsetHDR=%v\n", m.OffsetSDR, m.OffsetHDR)
	fmt.Fprintf(w, "  HDRCapacityMin=%v HDRCapacityMax=%v BaseRenditionIsHDR=%v\n", m.HDRCapacityMin, m.HDRCapacityMax, m.BaseRenditionIsHDR)
	return nil
}

func runDetect(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.Wrap(hdrbake.ErrConfig, "expected exactly one input JPEG path")
	}
	f, err := os.Open(filepath.Clean(c.Args().First()))
	if err != nil {
		return err
	}
	defer f.Close()
	ok, err := hdrbake.IsUltraHDR(f)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(os.Stdout, "ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "not ultrahdr")
	return nil
}

func runSplit(c *cli.Context) error {
	if c.NArg() != 3 {
		return errors.Wrap(hdrbake.ErrConfig, "expected input, primary and gain map paths")
	}
	data, err := os.ReadFile(filepath.Clean(c.Args().Get(0)))
	if err != nil {
		return err
	}
	ct, err := hdrbake.Split(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Args().Get(1), ct.PrimaryJPEG, 0o644); err != nil {
		return err
	}
	return os.WriteFile(c.Args().Get(2), ct.GainMapJPEG, 0o644)
}
