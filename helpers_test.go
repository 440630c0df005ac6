package hdrbake

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/jcgregorio/logger"
	"github.com/jcgregorio/slog"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

type fauxSyncWriter struct {
	b *bytes.Buffer
}

func newFauxSyncWriter() *fauxSyncWriter {
	return &fauxSyncWriter{b: &bytes.Buffer{}}
}

func (f *fauxSyncWriter) Write(p []byte) (n int, err error) {
	return f.b.Write(p)
}

func (f *fauxSyncWriter) Sync() error {
	return nil
}

func (f *fauxSyncWriter) String() string {
	return f.b.String()
}

// newTestLogger returns a logger writing into the returned buffer.
func newTestLogger() (slog.Logger, *fauxSyncWriter) {
	w := newFauxSyncWriter()
	return logger.NewFromOptions(&logger.Options{
		SyncWriter:   w,
		IncludeDebug: true,
	}), w
}

func countOccurrences(s, sub string) int {
	return strings.Count(s, sub)
}

// testEXR builds single-part scanline OpenEXR files.
type testEXR struct {
	width, height int
	// channels maps a channel name to width*height samples.
	channels    map[string][]float32
	half        bool
	compression byte
	chroma      *Chromaticities
	// window replaces the dataWindow derived from width and height.
	window *[4]int32
	// offsets, when non-nil, is written as the offset table and no
	// scanline blocks follow.
	offsets []uint64
}

func (e testEXR) encode(t *testing.T) []byte {
	t.Helper()

	names := make([]string, 0, len(e.channels))
	for n := range e.channels {
		names = append(names, n)
	}
	sort.Strings(names)

	pixelType := int32(exrPixelFloat)
	bpp := 4
	if e.half {
		pixelType = exrPixelHalf
		bpp = 2
	}

	var hdr bytes.Buffer
	le := func(v interface{}) { require.NoError(t, binary.Write(&hdr, binary.LittleEndian, v)) }
	attr := func(name, typ string, payload []byte) {
		hdr.WriteString(name)
		hdr.WriteByte(0)
		hdr.WriteString(typ)
		hdr.WriteByte(0)
		le(int32(len(payload)))
		hdr.Write(payload)
	}

	le(uint32(exrMagic))
	le(uint32(2))

	var chlist bytes.Buffer
	for _, n := range names {
		chlist.WriteString(n)
		chlist.WriteByte(0)
		require.NoError(t, binary.Write(&chlist, binary.LittleEndian, []int32{pixelType, 0, 1, 1}))
	}
	chlist.WriteByte(0)
	attr("channels", "chlist", chlist.Bytes())
	attr("compression", "compression", []byte{e.compression})

	box := make([]byte, 16)
	binary.LittleEndian.PutUint32(box[8:], uint32(e.width-1))
	binary.LittleEndian.PutUint32(box[12:], uint32(e.height-1))
	if e.window != nil {
		for i, v := range e.window {
			binary.LittleEndian.PutUint32(box[i*4:], uint32(v))
		}
	}
	attr("dataWindow", "box2i", box)
	attr("displayWindow", "box2i", box)
	attr("lineOrder", "lineOrder", []byte{0})
	if e.chroma != nil {
		c := e.chroma
		var b bytes.Buffer
		require.NoError(t, binary.Write(&b, binary.LittleEndian, []float32{
			c.Red.X, c.Red.Y, c.Green.X, c.Green.Y, c.Blue.X, c.Blue.Y, c.White.X, c.White.Y,
		}))
		attr("chromaticities", "chromaticities", b.Bytes())
	}
	hdr.WriteByte(0)

	if e.offsets != nil {
		le(e.offsets)
		return hdr.Bytes()
	}

	var blocks [][]byte
	for y := 0; y < e.height; y++ {
		var line bytes.Buffer
		for _, n := range names {
			for x := 0; x < e.width; x++ {
				v := e.channels[n][y*e.width+x]
				if e.half {
					require.NoError(t, binary.Write(&line, binary.LittleEndian, float32ToHalf(v)))
				} else {
					require.NoError(t, binary.Write(&line, binary.LittleEndian, v))
				}
			}
		}
		data := line.Bytes()
		require.Len(t, data, e.width*len(names)*bpp)
		if e.compression == exrCompressionZips {
			data = zipsCompress(t, data)
		}
		var blk bytes.Buffer
		require.NoError(t, binary.Write(&blk, binary.LittleEndian, []int32{int32(y), int32(len(data))}))
		blk.Write(data)
		blocks = append(blocks, blk.Bytes())
	}

	offset := uint64(hdr.Len() + 8*len(blocks))
	out := bytes.NewBuffer(hdr.Bytes())
	for _, b := range blocks {
		require.NoError(t, binary.Write(out, binary.LittleEndian, offset))
		offset += uint64(len(b))
	}
	for _, b := range blocks {
		out.Write(b)
	}
	return out.Bytes()
}

// zipsCompress applies the OpenEXR byte split, delta predictor and zlib.
// Data that does not shrink is returned raw.
func zipsCompress(t *testing.T, raw []byte) []byte {
	n := len(raw) / 2
	split := make([]byte, len(raw))
	for i := 0; i < n; i++ {
		split[i] = raw[2*i]
		split[i+n] = raw[2*i+1]
	}
	pred := make([]byte, len(split))
	pred[0] = split[0]
	for i := 1; i < len(split); i++ {
		pred[i] = byte(int(split[i]) - int(split[i-1]) + 128)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(pred)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	if buf.Len() >= len(raw) {
		return raw
	}
	return buf.Bytes()
}

// float32ToHalf converts normal and zero values, truncating the mantissa.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xFF) - 127 + 15
	mant := uint16(bits>>13) & 0x03FF
	if f == 0 || exp <= 0 {
		return sign
	}
	if exp >= 31 {
		return sign | 0x7C00
	}
	return sign | uint16(exp)<<10 | mant
}

// uniformImage returns a w×h image filled with p.
func uniformImage(w, h int, p Pixel) *LinearImage {
	img := NewLinearImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = p
	}
	return img
}

// gradientImage ramps from black to 4x over-range along x.
func gradientImage(w, h int) *LinearImage {
	img := NewLinearImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 4 * float32(x) / float32(w-1)
			img.Set(x, y, Pixel{R: v, G: v * 0.8, B: v * float32(y+1) / float32(h)})
		}
	}
	return img
}

func float32NaN() float32 {
	return float32(math.NaN())
}
