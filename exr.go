package hdrbake

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

const exrMagic = 20000630

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

const (
	exrChanOther = -1
	exrChanR     = 0
	exrChanG     = 1
	exrChanB     = 2
)

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	role      int
}

// DecodeEXRFile reads and decodes a scanline OpenEXR file.
func DecodeEXRFile(path string) (*LinearImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	img, err := DecodeEXR(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// DecodeEXR decodes a single-part scanline OpenEXR image with R, G and B
// channels. Missing color channels read as 0. The chromaticities attribute,
// when present, is returned on the image. Errors wrap ErrDecode.
func DecodeEXR(data []byte) (*LinearImage, error) {
	img, err := decodeEXR(data)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return nil, err
		}
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	return img, nil
}

// maxEXRPixels caps the decoded raster at 12 bytes per pixel.
const maxEXRPixels = 1 << 26

// exrHeader holds the attributes the decoder acts on.
type exrHeader struct {
	channels    []exrChannel
	window      [4]int32
	hasWindow   bool
	compression byte
	chroma      *Chromaticities
}

func decodeEXR(data []byte) (*LinearImage, error) {
	r := bytes.NewReader(data)
	if err := readEXRVersion(r); err != nil {
		return nil, err
	}
	h, err := readEXRHeader(r)
	if err != nil {
		return nil, err
	}
	width, height, err := h.size()
	if err != nil {
		return nil, err
	}
	if h.compression == exrCompressionNone {
		need := int64(exrExpectedBlockBytes(width, height, h.channels))
		if int64(len(data)) < need {
			return nil, errors.New("OpenEXR pixel data truncated")
		}
	}
	offsets, err := readEXROffsets(r, h.blockCount(height), len(data))
	if err != nil {
		return nil, err
	}

	hdr := NewLinearImage(width, height)
	hdr.Chromaticities = h.chroma
	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if err := h.decodeBlock(hdr, data[off:]); err != nil {
			return nil, err
		}
	}
	return hdr, nil
}

func readEXRVersion(r *bytes.Reader) error {
	magic, err := readU32(r)
	if err != nil {
		return err
	}
	if magic != exrMagic {
		return errors.New("not an OpenEXR file")
	}
	version, err := readU32(r)
	if err != nil {
		return err
	}
	switch {
	case version&0x200 != 0:
		return errors.New("tiled OpenEXR not supported")
	case version&0x800 != 0:
		return errors.New("multipart OpenEXR not supported")
	case version&0x400 != 0:
		return errors.New("deep OpenEXR not supported")
	}
	return nil
}

func readEXRHeader(r *bytes.Reader) (*exrHeader, error) {
	h := &exrHeader{compression: exrCompressionNone}
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.Errorf("invalid size %d for OpenEXR attribute %s", size, name)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		if err := h.setAttribute(name, typ, payload); err != nil {
			return nil, err
		}
	}

	if len(h.channels) == 0 {
		return nil, errors.New("OpenEXR missing channels")
	}
	if !h.hasWindow {
		return nil, errors.New("OpenEXR missing dataWindow")
	}
	if !hasRGB(h.channels) {
		return nil, errors.New("OpenEXR missing R/G/B channels")
	}
	for _, ch := range h.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return nil, errors.New("OpenEXR subsampled channels are not supported")
		}
	}
	switch h.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
	default:
		return nil, errors.Errorf("unsupported OpenEXR compression %d", h.compression)
	}
	return h, nil
}

func (h *exrHeader) setAttribute(name, typ string, payload []byte) error {
	switch name {
	case "channels":
		if typ != "chlist" {
			return errors.New("unexpected channels attribute type")
		}
		ch, err := parseEXRChannels(payload)
		if err != nil {
			return err
		}
		h.channels = ch
	case "dataWindow":
		if typ != "box2i" || len(payload) != 16 {
			return errors.New("invalid dataWindow attribute")
		}
		for i := range h.window {
			h.window[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		h.hasWindow = true
	case "compression":
		if typ != "compression" || len(payload) < 1 {
			return errors.New("invalid compression attribute")
		}
		h.compression = payload[0]
	case "chromaticities":
		if typ != "chromaticities" || len(payload) != 32 {
			return errors.New("invalid chromaticities attribute")
		}
		var v [8]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		ch := Chromaticities{
			Red:   XyCoord{X: v[0], Y: v[1]},
			Green: XyCoord{X: v[2], Y: v[3]},
			Blue:  XyCoord{X: v[4], Y: v[5]},
			White: XyCoord{X: v[6], Y: v[7]},
		}
		if !ch.Valid() {
			return errors.New("non-finite chromaticities attribute")
		}
		h.chroma = &ch
	case "tiles":
		return errors.New("tiled OpenEXR not supported")
	}
	return nil
}

// size returns the dataWindow extent, bounded by maxEXRPixels.
func (h *exrHeader) size() (int, int, error) {
	w := int64(h.window[2]) - int64(h.window[0]) + 1
	ht := int64(h.window[3]) - int64(h.window[1]) + 1
	if w <= 0 || ht <= 0 {
		return 0, 0, errors.New("invalid OpenEXR dimensions")
	}
	if w*ht > maxEXRPixels {
		return 0, 0, errors.Errorf("OpenEXR dimensions %dx%d exceed %d pixels", w, ht, maxEXRPixels)
	}
	return int(w), int(ht), nil
}

func (h *exrHeader) linesPerBlock() int {
	if h.compression == exrCompressionZip {
		return 16
	}
	return 1
}

func (h *exrHeader) blockCount(height int) int {
	n := h.linesPerBlock()
	return (height + n - 1) / n
}

// readEXROffsets reads the scanline offset table. Zero entries mark
// missing blocks; every other entry must point past the table and leave
// room for a block prefix.
func readEXROffsets(r *bytes.Reader, count, fileSize int) ([]int, error) {
	if int64(count)*8 > int64(r.Len()) {
		return nil, errors.New("OpenEXR offset table truncated")
	}
	tableEnd := fileSize - r.Len() + count*8
	offsets := make([]int, count)
	present := 0
	for i := range offsets {
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		if v == 0 {
			continue
		}
		if v < uint64(tableEnd) || v > uint64(fileSize-8) {
			return nil, errors.Errorf("OpenEXR block offset %d out of range", v)
		}
		offsets[i] = int(v)
		present++
	}
	if present == 0 {
		return nil, errors.New("OpenEXR has no scanline blocks")
	}
	return offsets, nil
}

// decodeBlock decodes one scanline block starting at the beginning of data.
func (h *exrHeader) decodeBlock(dst *LinearImage, data []byte) error {
	y := int32(binary.LittleEndian.Uint32(data[0:4]))
	size := int32(binary.LittleEndian.Uint32(data[4:8]))
	if size < 0 || int64(size) > int64(len(data)-8) {
		return errors.New("invalid OpenEXR block size")
	}
	raw := data[8 : 8+int(size)]

	startY := int64(y) - int64(h.window[1])
	if startY < 0 || startY >= int64(dst.Height) {
		return errors.New("OpenEXR scanline out of bounds")
	}
	lines := h.linesPerBlock()
	if int(startY)+lines > dst.Height {
		lines = dst.Height - int(startY)
	}

	expected := exrExpectedBlockBytes(dst.Width, lines, h.channels)
	unpacked, err := exrDecompress(h.compression, raw, expected)
	if err != nil {
		return err
	}
	return exrDecodeBlock(dst, h.channels, int(startY), dst.Width, lines, unpacked)
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	r := bytes.NewReader(data)
	var channels []exrChannel
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		pixelType, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if pixelType != exrPixelHalf && pixelType != exrPixelFloat && pixelType != exrPixelUint {
			return nil, errors.Errorf("unsupported OpenEXR pixel type %d", pixelType)
		}
		if _, err := r.ReadByte(); err != nil {
			return nil, err
		}
		if _, err := r.Seek(3, io.SeekCurrent); err != nil {
			return nil, err
		}
		xSampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ySampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		role := exrChanOther
		switch strings.ToUpper(name) {
		case "R":
			role = exrChanR
		case "G":
			role = exrChanG
		case "B":
			role = exrChanB
		}
		channels = append(channels, exrChannel{
			name:      name,
			pixelType: pixelType,
			xSampling: xSampling,
			ySampling: ySampling,
			role:      role,
		})
	}
	return channels, nil
}

func exrExpectedBlockBytes(width, lines int, channels []exrChannel) int {
	total := 0
	for _, ch := range channels {
		bpp := 0
		switch ch.pixelType {
		case exrPixelHalf:
			bpp = 2
		case exrPixelFloat, exrPixelUint:
			bpp = 4
		}
		total += width * lines * bpp
	}
	return total
}

func exrDecompress(compression byte, data []byte, expected int) ([]byte, error) {
	switch compression {
	case exrCompressionNone:
		if expected > 0 && len(data) != expected {
			return nil, errors.New("unexpected OpenEXR block size")
		}
		return data, nil
	case exrCompressionZips, exrCompressionZip:
		if len(data) == expected {
			// Blocks that do not shrink are stored raw.
			return data, nil
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		uncompressed, err := io.ReadAll(io.LimitReader(zr, int64(expected)+1))
		if err != nil {
			return nil, err
		}
		if expected > 0 && len(uncompressed) != expected {
			return nil, errors.New("unexpected OpenEXR decompressed size")
		}
		if len(uncompressed)%2 != 0 {
			return nil, errors.New("invalid OpenEXR ZIP payload size")
		}
		undoPredictor(uncompressed)
		return unshuffleBytes(uncompressed), nil
	default:
		return nil, errors.New("unsupported OpenEXR compression")
	}
}

func undoPredictor(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = byte(int(data[i]) + int(data[i-1]) - 128)
	}
}

func unshuffleBytes(data []byte) []byte {
	n := len(data) / 2
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		out[2*i] = data[i]
		out[2*i+1] = data[i+n]
	}
	return out
}

func exrDecodeBlock(dst *LinearImage, channels []exrChannel, startY, width, lines int, data []byte) error {
	offset := 0
	for row := 0; row < lines; row++ {
		y := startY + row
		for _, ch := range channels {
			bpp := 0
			switch ch.pixelType {
			case exrPixelHalf:
				bpp = 2
			case exrPixelFloat, exrPixelUint:
				bpp = 4
			default:
				return errors.New("unsupported OpenEXR channel pixel type")
			}
			lineBytes := width * bpp
			if offset+lineBytes > len(data) {
				return errors.New("OpenEXR block truncated")
			}
			line := data[offset : offset+lineBytes]
			offset += lineBytes

			switch ch.role {
			case exrChanR, exrChanG, exrChanB:
				if err := exrApplyLine(dst, ch.role, y, width, ch.pixelType, line); err != nil {
					return err
				}
			default:
				continue
			}
		}
	}
	return nil
}

func exrApplyLine(dst *LinearImage, role int, y, width int, pixelType int32, line []byte) error {
	for x := 0; x < width; x++ {
		var v float32
		switch pixelType {
		case exrPixelHalf:
			off := x * 2
			v = halfToFloat32(binary.LittleEndian.Uint16(line[off : off+2]))
		case exrPixelFloat:
			off := x * 4
			v = math.Float32frombits(binary.LittleEndian.Uint32(line[off : off+4]))
		case exrPixelUint:
			off := x * 4
			v = float32(binary.LittleEndian.Uint32(line[off : off+4]))
		default:
			return errors.New("unsupported OpenEXR pixel type")
		}
		p := &dst.Pix[y*dst.Width+x]
		switch role {
		case exrChanR:
			p.R = v
		case exrChanG:
			p.G = v
		case exrChanB:
			p.B = v
		}
	}
	return nil
}

func hasRGB(channels []exrChannel) bool {
	for _, ch := range channels {
		if ch.role == exrChanR || ch.role == exrChanG || ch.role == exrChanB {
			return true
		}
	}
	return false
}

func readNullString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := int32(h & 0x03FF)

	if exp == 0 {
		if mant == 0 {
			return math.Float32frombits(sign << 31)
		}
		for mant&0x0400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x03FF
	} else if exp == 31 {
		if mant == 0 {
			return math.Float32frombits((sign << 31) | 0x7F800000)
		}
		return math.Float32frombits((sign << 31) | 0x7F800000 | (uint32(mant) << 13))
	}

	exp = exp + (127 - 15)
	mant <<= 13
	bits := (sign << 31) | (uint32(exp) << 23) | uint32(mant)
	return math.Float32frombits(bits)
}
