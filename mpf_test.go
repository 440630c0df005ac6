package hdrbake

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyMPFBytes(t *testing.T) {
	want := []byte{
		'M', 'P', 'F', 0,
		0x49, 0x49, 0x2A, 0x00,
		0x08, 0x00, 0x00, 0x00,
		0x03, 0x00,
		0x00, 0xB0, 0x07, 0x00, 0x04, 0x00, 0x00, 0x00, '0', '1', '0', '0',
		0x01, 0xB0, 0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
		0x02, 0xB0, 0x07, 0x00, 0x20, 0x00, 0x00, 0x00, 0x32, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x03, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	h := LegacyMPFHeader()
	assert.Equal(t, want, h.Marshal())
	assert.Equal(t, len(want), h.Size())
}

func TestMPFRoundTrip(t *testing.T) {
	h := NewMPFHeader(100000, 2500, 99000)
	payload := h.Marshal()
	require.Len(t, payload, h.Size())
	assert.Equal(t, mpfBigEndian, payload[4:8])

	got, err := ParseMPF(payload)
	require.NoError(t, err)
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), got.Order)
	assert.Equal(t, h.Entries, got.Entries)

	p, ok := got.Primary()
	require.True(t, ok)
	assert.Equal(t, uint32(100000), p.Size)
	assert.Equal(t, uint32(0), p.Offset)

	s, ok := got.Secondary()
	require.True(t, ok)
	assert.Equal(t, uint32(2500), s.Size)
	assert.Equal(t, uint32(99000), s.Offset)
}

func TestMPFLegacyRoundTrip(t *testing.T) {
	got, err := ParseMPF(LegacyMPFHeader().Marshal())
	require.NoError(t, err)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), got.Order)
	require.Len(t, got.Entries, 2)

	s, ok := got.Secondary()
	require.True(t, ok)
	assert.Zero(t, s.Size)
	assert.Zero(t, s.Offset)
}

func TestMPFPrimaryFallback(t *testing.T) {
	h := MPFHeader{Entries: []MPFEntry{{Size: 1}, {Size: 2}}}
	p, ok := h.Primary()
	require.True(t, ok)
	assert.Equal(t, uint32(1), p.Size)

	_, ok = MPFHeader{}.Primary()
	assert.False(t, ok)
	_, ok = MPFHeader{Entries: []MPFEntry{{Attribute: MPFAttrPrimary}}}.Secondary()
	assert.False(t, ok)
}

func TestParseMPFErrors(t *testing.T) {
	valid := NewMPFHeader(10, 10, 10).Marshal()
	corrupt := func(mod func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return mod(b)
	}

	for name, payload := range map[string][]byte{
		"empty":      nil,
		"signature":  []byte("EXIF\x00\x00MM\x00\x2A\x00\x00\x00\x08"),
		"endian":     corrupt(func(b []byte) []byte { b[4], b[5] = 'X', 'X'; return b }),
		"magic":      corrupt(func(b []byte) []byte { b[7] = 0x2B; return b }),
		"ifd offset": corrupt(func(b []byte) []byte { binary.BigEndian.PutUint32(b[8:], 1000); return b }),
		"truncated":  valid[:30],
		"entries":    corrupt(func(b []byte) []byte { return b[:len(b)-8] }),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMPF(payload)
			assert.Error(t, err)
		})
	}
}
