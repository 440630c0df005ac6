package hdrbake

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestEXR(t *testing.T, dir string, img *LinearImage, ch *Chromaticities) string {
	t.Helper()
	path := filepath.Join(dir, "in.exr")
	e := testEXR{width: img.Width, height: img.Height, channels: rgbChannels(img.Pix), half: true, compression: exrCompressionZips, chroma: ch}
	require.NoError(t, os.WriteFile(path, e.encode(t), 0o600))
	return path
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	ch := rec2020
	input := writeTestEXR(t, dir, gradientImage(40, 30), &ch)
	out := Outputs{PNG: filepath.Join(dir, "out.png"), JPEG: filepath.Join(dir, "out.jpg")}

	log, w := newTestLogger()
	ev := float32(-1)
	opts := Options{
		Pipeline: PipelineOptions{OutputSpace: &rec709, Exposure: &ev},
		Profile:  DefaultProfile(),
		Logger:   log,
	}
	require.NoError(t, ConvertFile(context.Background(), input, out, opts))

	assert.Equal(t, 1, countOccurrences(w.String(), warnGamut))
	assert.Zero(t, countOccurrences(w.String(), warnAssumeRec709))

	pngData, err := os.ReadFile(out.PNG)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	jpgData, err := os.ReadFile(out.JPEG)
	require.NoError(t, err)
	c, err := Split(jpgData)
	require.NoError(t, err)
	assert.Greater(t, c.Meta.GainMapMax, float32(0))

	ok, err := IsUltraHDR(bytes.NewReader(jpgData))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConvertFilePNGOnly(t *testing.T) {
	dir := t.TempDir()
	input := writeTestEXR(t, dir, uniformImage(4, 4, Pixel{R: 0.5, G: 0.5, B: 0.5}), nil)
	out := Outputs{PNG: filepath.Join(dir, "out.png")}

	log, w := newTestLogger()
	require.NoError(t, ConvertFile(context.Background(), input, out, Options{Profile: DefaultProfile(), Logger: log}))
	assert.Equal(t, 1, countOccurrences(w.String(), warnAssumeRec709))

	pngData, err := os.ReadFile(out.PNG)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)
	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Equal(t, []uint32{191, 191, 191}, []uint32{r >> 8, g >> 8, b >> 8})

	_, err = os.Stat(filepath.Join(dir, "out.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertFileErrors(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{PNG: filepath.Join(dir, "out.png"), JPEG: filepath.Join(dir, "out.jpg")}

	err := ConvertFile(context.Background(), "in.exr", Outputs{}, Options{Profile: DefaultProfile()})
	assert.True(t, errors.Is(err, ErrConfig))

	bad := filepath.Join(dir, "bad.exr")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o600))
	err = ConvertFile(context.Background(), bad, out, Options{Profile: DefaultProfile()})
	assert.True(t, errors.Is(err, ErrDecode))

	input := writeTestEXR(t, dir, uniformImage(2, 2, Pixel{R: 1}), nil)
	p := DefaultProfile()
	p.DisplayGamma = 0
	err = ConvertFile(context.Background(), input, out, Options{Profile: p})
	assert.True(t, errors.Is(err, ErrConfig))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, []string{"out.png", "out.jpg"}, e.Name())
	}
}

func TestConvertPixelCountMismatch(t *testing.T) {
	img := &LinearImage{Width: 4, Height: 4, Pix: make([]Pixel, 3)}
	_, err := Convert(context.Background(), img, Options{Profile: DefaultProfile()})
	assert.True(t, errors.Is(err, ErrDecode))
}
