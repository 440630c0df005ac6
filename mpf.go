package hdrbake

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	mpfEndianSize = 4
	mpfTagCount   = 3
	mpfTagSize    = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag        = 0xB000
	mpfVersionCount      = 4
	mpfNumberOfImagesTag = 0xB001
	mpfEntryTag          = 0xB002
	mpfEntrySize         = 16

	// MPFAttrPrimary marks the baseline primary image entry.
	MPFAttrPrimary = 0x030000
)

var (
	mpfSig          = []byte{'M', 'P', 'F', 0}
	mpfBigEndian    = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfLittleEndian = []byte{0x49, 0x49, 0x2A, 0x00}
	mpfVersion      = []byte{'0', '1', '0', '0'}
)

// MPFEntry is one image of a multi-picture index. Offset is relative to the
// MPF TIFF header and is 0 for the first image.
type MPFEntry struct {
	Attribute  uint32
	Size       uint32
	Offset     uint32
	Dependent1 uint16
	Dependent2 uint16
}

// MPFHeader is a multi-picture format index IFD.
type MPFHeader struct {
	Order   binary.ByteOrder
	Entries []MPFEntry
}

// NewMPFHeader describes a primary image and one secondary image in
// big-endian order.
func NewMPFHeader(primarySize, secondarySize, secondaryOffset int) MPFHeader {
	return MPFHeader{
		Order: binary.BigEndian,
		Entries: []MPFEntry{
			{Attribute: MPFAttrPrimary, Size: uint32(primarySize)},
			{Size: uint32(secondarySize), Offset: uint32(secondaryOffset)},
		},
	}
}

// LegacyMPFHeader returns the fixed little-endian index with zero sizes and
// offsets emitted by earlier encoders. Readers fall back to marker scanning.
func LegacyMPFHeader() MPFHeader {
	return MPFHeader{
		Order: binary.LittleEndian,
		Entries: []MPFEntry{
			{Attribute: MPFAttrPrimary},
			{},
		},
	}
}

// Size returns the length of the marshaled APP2 payload.
func (h MPFHeader) Size() int {
	return len(mpfSig) + mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4 + len(h.Entries)*mpfEntrySize
}

// Marshal returns the APP2 payload including the "MPF\0" signature.
func (h MPFHeader) Marshal() []byte {
	order := h.Order
	if order == nil {
		order = binary.BigEndian
	}
	buf := make([]byte, 0, h.Size())
	var tmp [4]byte
	putU16 := func(v uint16) { order.PutUint16(tmp[:2], v); buf = append(buf, tmp[:2]...) }
	putU32 := func(v uint32) { order.PutUint32(tmp[:4], v); buf = append(buf, tmp[:4]...) }

	buf = append(buf, mpfSig...)
	if order == binary.LittleEndian {
		buf = append(buf, mpfLittleEndian...)
	} else {
		buf = append(buf, mpfBigEndian...)
	}

	putU32(mpfEndianSize + 4)
	putU16(mpfTagCount)

	putU16(mpfVersionTag)
	putU16(mpfTypeUndefined)
	putU32(mpfVersionCount)
	buf = append(buf, mpfVersion...)

	putU16(mpfNumberOfImagesTag)
	putU16(mpfTypeLong)
	putU32(1)
	putU32(uint32(len(h.Entries)))

	putU16(mpfEntryTag)
	putU16(mpfTypeUndefined)
	putU32(uint32(mpfEntrySize * len(h.Entries)))
	// Offset from TIFF header start (after MPF signature).
	putU32(uint32(mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4))

	// Next IFD offset.
	putU32(0)

	for _, e := range h.Entries {
		putU32(e.Attribute)
		putU32(e.Size)
		putU32(e.Offset)
		putU16(e.Dependent1)
		putU16(e.Dependent2)
	}
	return buf
}

// Primary returns the first entry flagged as primary, or the first entry.
func (h MPFHeader) Primary() (MPFEntry, bool) {
	for _, e := range h.Entries {
		if e.Attribute&MPFAttrPrimary != 0 {
			return e, true
		}
	}
	if len(h.Entries) > 0 {
		return h.Entries[0], true
	}
	return MPFEntry{}, false
}

// Secondary returns the first non-primary entry.
func (h MPFHeader) Secondary() (MPFEntry, bool) {
	for _, e := range h.Entries {
		if e.Attribute&MPFAttrPrimary == 0 {
			return e, true
		}
	}
	return MPFEntry{}, false
}

// ParseMPF decodes an APP2 payload starting with "MPF\0".
func ParseMPF(payload []byte) (MPFHeader, error) {
	if len(payload) < len(mpfSig)+8 || !bytes.HasPrefix(payload, mpfSig) {
		return MPFHeader{}, errors.New("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	var order binary.ByteOrder
	switch {
	case tiff[0] == 0x4D && tiff[1] == 0x4D:
		order = binary.BigEndian
	case tiff[0] == 0x49 && tiff[1] == 0x49:
		order = binary.LittleEndian
	default:
		return MPFHeader{}, errors.New("mpf endian invalid")
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return MPFHeader{}, errors.New("mpf tiff magic invalid")
	}
	ifdPos := int(order.Uint32(tiff[4:8]))
	if ifdPos < 0 || ifdPos+2 > len(tiff) {
		return MPFHeader{}, errors.New("mpf ifd offset invalid")
	}
	tagCount := int(order.Uint16(tiff[ifdPos : ifdPos+2]))
	ifdPos += 2
	entryOffset, entryBytes := -1, 0
	for i := 0; i < tagCount; i++ {
		if ifdPos+12 > len(tiff) {
			return MPFHeader{}, errors.New("mpf ifd truncated")
		}
		tag := order.Uint16(tiff[ifdPos : ifdPos+2])
		typ := order.Uint16(tiff[ifdPos+2 : ifdPos+4])
		count := order.Uint32(tiff[ifdPos+4 : ifdPos+8])
		value := order.Uint32(tiff[ifdPos+8 : ifdPos+12])
		if tag == mpfEntryTag && typ == mpfTypeUndefined && count >= mpfEntrySize {
			entryOffset = int(value)
			entryBytes = int(count)
			break
		}
		ifdPos += 12
	}
	n := entryBytes / mpfEntrySize
	if entryOffset < 0 || entryOffset+n*mpfEntrySize > len(tiff) {
		return MPFHeader{}, errors.New("mpf entry offset invalid")
	}

	h := MPFHeader{Order: order, Entries: make([]MPFEntry, 0, n)}
	for pos := entryOffset; len(h.Entries) < n; pos += mpfEntrySize {
		h.Entries = append(h.Entries, MPFEntry{
			Attribute:  order.Uint32(tiff[pos:]),
			Size:       order.Uint32(tiff[pos+4:]),
			Offset:     order.Uint32(tiff[pos+8:]),
			Dependent1: order.Uint16(tiff[pos+12:]),
			Dependent2: order.Uint16(tiff[pos+14:]),
		})
	}
	return h, nil
}
