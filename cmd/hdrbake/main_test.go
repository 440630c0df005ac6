package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vearutop/hdrbake"
)

func TestPipelineOptions(t *testing.T) {
	opts, err := pipelineOptions("", "", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, hdrbake.PipelineOptions{}, opts)

	ev := 1.5
	opts, err = pipelineOptions("rec2020", "d50", "display-p3", "6500K", &ev)
	require.NoError(t, err)

	require.NotNil(t, opts.InputSpace)
	assert.True(t, opts.InputSpace.Equal(hdrbake.ColorSpaceRec2020.Chromaticities()))
	require.NotNil(t, opts.InputWhite)
	assert.Equal(t, hdrbake.IlluminantD50, *opts.InputWhite)
	require.NotNil(t, opts.OutputSpace)
	assert.True(t, opts.OutputSpace.Equal(hdrbake.ColorSpaceDisplayP3.Chromaticities()))
	require.NotNil(t, opts.OutputWhite)
	require.NotNil(t, opts.Exposure)
	assert.Equal(t, float32(1.5), *opts.Exposure)
}

func TestPipelineOptionsErrors(t *testing.T) {
	for _, args := range [][4]string{
		{"rec601", "", "", ""},
		{"", "d42", "", ""},
		{"", "", "srgbish", ""},
		{"", "", "", "100K"},
	} {
		_, err := pipelineOptions(args[0], args[1], args[2], args[3], nil)
		assert.True(t, errors.Is(err, hdrbake.ErrConfig), "%v", args)
	}
}

func TestDescribe(t *testing.T) {
	color.NoColor = true

	img := hdrbake.NewLinearImage(16, 8)
	for i := range img.Pix {
		v := float32(i%16) / 4
		img.Pix[i] = hdrbake.Pixel{R: v, G: v, B: v}
	}
	res, err := hdrbake.Convert(context.Background(), img, hdrbake.Options{Profile: hdrbake.DefaultProfile(), GainMap: true})
	require.NoError(t, err)
	data, err := res.EncodeUltraHDR(hdrbake.DefaultProfile())
	require.NoError(t, err)
	ct, err := hdrbake.Split(data)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, describe(&buf, ct, len(data)))
	out := buf.String()

	assert.Contains(t, out, "mpf 2 entries, BigEndian")
	assert.Contains(t, out, "hdrgm version=1.0")
	assert.Contains(t, out, "icc ")
	assert.NotContains(t, out, "does not match")
	assert.NotContains(t, out, "legacy index")
}
