// Package pngx reads and inserts ancillary PNG chunks around image/png output.
package pngx

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// Signature is the 8-byte PNG file signature.
const Signature = "\x89PNG\r\n\x1a\n"

// ErrNotAPNG is returned for input without a valid signature or chunk layout.
var ErrNotAPNG = errors.New("pngx: not a PNG")

// Chunk is a PNG chunk without its length and CRC framing.
type Chunk struct {
	Type string
	Data []byte
}

// Chunks walks encoded and returns all chunks in order.
func Chunks(encoded []byte) ([]Chunk, error) {
	if len(encoded) < 8 || string(encoded[:8]) != Signature {
		return nil, ErrNotAPNG
	}
	var chunks []Chunk
	for src := encoded[8:]; len(src) > 0; {
		if len(src) < 12 {
			return nil, ErrNotAPNG
		}
		n := binary.BigEndian.Uint32(src)
		if uint64(len(src)) < 12+uint64(n) {
			return nil, ErrNotAPNG
		}
		chunks = append(chunks, Chunk{Type: string(src[4:8]), Data: src[8 : 8+n]})
		src = src[12+n:]
	}
	return chunks, nil
}

// InsertAfter returns a copy of encoded with chunks written right after the
// first chunk of type after.
func InsertAfter(encoded []byte, after string, chunks ...Chunk) ([]byte, error) {
	if len(encoded) < 8 || string(encoded[:8]) != Signature {
		return nil, ErrNotAPNG
	}
	pos := 8
	for {
		if pos+12 > len(encoded) {
			return nil, errors.Wrapf(ErrNotAPNG, "no %s chunk", after)
		}
		n := int(binary.BigEndian.Uint32(encoded[pos:]))
		typ := string(encoded[pos+4 : pos+8])
		pos += 12 + n
		if pos > len(encoded) {
			return nil, ErrNotAPNG
		}
		if typ == after {
			break
		}
	}

	var out bytes.Buffer
	out.Grow(len(encoded) + 64)
	out.Write(encoded[:pos])
	for _, c := range chunks {
		if err := WriteChunk(&out, c); err != nil {
			return nil, err
		}
	}
	out.Write(encoded[pos:])
	return out.Bytes(), nil
}

// WriteChunk writes c with its length and CRC.
func WriteChunk(w *bytes.Buffer, c Chunk) error {
	if len(c.Type) != 4 {
		return errors.Errorf("pngx: invalid chunk type %q", c.Type)
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(c.Data)))
	copy(hdr[4:], c.Type)
	w.Write(hdr[:])
	w.Write(c.Data)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(c.Data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
	return nil
}
