package hdrbake

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vearutop/hdrbake/internal/pngx"
)

func testDisplay(ch Chromaticities) *DisplayImage {
	return &DisplayImage{
		Width:          2,
		Height:         1,
		Pix:            []uint8{255, 0, 10, 191, 128, 1},
		Chromaticities: ch,
		Gamma:          2.4,
	}
}

func TestEncodePNGChunks(t *testing.T) {
	log, w := newTestLogger()
	data, err := EncodePNG(testDisplay(rec709), log)
	require.NoError(t, err)
	assert.Empty(t, w.String())

	chunks, err := pngx.Chunks(data)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 4)
	assert.Equal(t, "IHDR", chunks[0].Type)
	assert.Equal(t, "gAMA", chunks[1].Type)
	assert.Equal(t, "cHRM", chunks[2].Type)
	assert.Equal(t, "IEND", chunks[len(chunks)-1].Type)

	assert.Equal(t, uint32(41667), binary.BigEndian.Uint32(chunks[1].Data))

	chrm := chunks[2].Data
	require.Len(t, chrm, 32)
	var got [8]uint32
	for i := range got {
		got[i] = binary.BigEndian.Uint32(chrm[i*4:])
	}
	assert.Equal(t, [8]uint32{31270, 32900, 64000, 33000, 30000, 60000, 15000, 6000}, got)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, a := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{191, 128, 1, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
	r, _, b, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)
	assert.Equal(t, uint32(10), b>>8)
}

func TestEncodePNGNegativeChromaticities(t *testing.T) {
	log, w := newTestLogger()
	data, err := EncodePNG(testDisplay(acesAP0), log)
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(w.String(), warnPNGNegative))

	chunks, err := pngx.Chunks(data)
	require.NoError(t, err)
	// Blue y of AP0 is negative and clamps to 0.
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(chunks[2].Data[28:]))
}

func TestPNGFixed(t *testing.T) {
	assert.Equal(t, uint32(0), pngFixed(-0.077))
	assert.Equal(t, uint32(0), pngFixed(float32NaN()))
	assert.Equal(t, uint32(100000), pngFixed(1))
	assert.Equal(t, uint32(45455), pngFixed(1/2.2))
}
