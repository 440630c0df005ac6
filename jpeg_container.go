package hdrbake

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
)

const xmpNamespace = "http://ns.adobe.com/xap/1.0/"

var iccSig = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}

func scanJPEGs(data []byte) ([][2]int, error) {
	if ranges, ok := scanJPEGsByMPF(data); ok {
		return ranges, nil
	}
	var ranges [][2]int
	i := 0
	for i+1 < len(data) {
		if data[i] == markerStart && data[i+1] == markerSOI {
			start := i
			end, err := findJPEGEnd(data, i)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, [2]int{start, end})
			i = end
			continue
		}
		i++
	}
	if len(ranges) == 0 {
		return nil, errors.Wrap(ErrDecode, "no JPEG images found")
	}
	return ranges, nil
}

func scanJPEGsByMPF(data []byte) ([][2]int, bool) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, false
	}
	primaryStart := 0
	primarySize, secondarySize, secondaryOffset, ok := findMPFInfo(data, primaryStart)
	if !ok {
		return nil, false
	}
	primaryEnd := primaryStart + primarySize
	secondaryStart := secondaryOffset
	secondaryEnd := secondaryStart + secondarySize
	if primarySize <= 0 || secondarySize <= 0 {
		return nil, false
	}
	if primaryEnd > len(data) || secondaryEnd > len(data) || secondaryStart < 0 {
		return nil, false
	}
	if secondaryStart+1 >= len(data) || data[secondaryStart] != markerStart || data[secondaryStart+1] != markerSOI {
		return nil, false
	}
	return [][2]int{{primaryStart, primaryEnd}, {secondaryStart, secondaryEnd}}, true
}

func findMPFInfo(data []byte, primaryStart int) (primarySize, secondarySize, secondaryOffset int, ok bool) {
	if primaryStart+1 >= len(data) || data[primaryStart] != markerStart || data[primaryStart+1] != markerSOI {
		return 0, 0, 0, false
	}
	pos := primaryStart + 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		switch marker {
		case markerSOI:
			continue
		case markerEOI, markerSOS:
			return 0, 0, 0, false
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if marker == 0x01 {
			continue
		}
		if pos+1 >= len(data) {
			return 0, 0, 0, false
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return 0, 0, 0, false
		}
		segStart := pos + 2
		segEnd := pos + segLen
		if marker == markerAPP2 && bytes.HasPrefix(data[segStart:segEnd], mpfSig) {
			h, err := ParseMPF(data[segStart:segEnd])
			if err != nil {
				return 0, 0, 0, false
			}
			primary, ok1 := h.Primary()
			secondary, ok2 := h.Secondary()
			if !ok1 || !ok2 {
				return 0, 0, 0, false
			}
			tiffHeaderAbs := segStart + len(mpfSig)
			return int(primary.Size), int(secondary.Size), tiffHeaderAbs + int(secondary.Offset), true
		}
		pos = segEnd
	}
	return 0, 0, 0, false
}

func findJPEGEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, errors.New("not a JPEG SOI")
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if !inScan {
			if data[pos] != markerStart {
				pos++
				continue
			}
			for pos < len(data) && data[pos] == markerStart {
				pos++
			}
			if pos >= len(data) {
				break
			}
			marker := data[pos]
			pos++
			switch marker {
			case markerSOI:
				continue
			case markerEOI:
				return pos, nil
			case markerSOS:
				if pos+1 >= len(data) {
					return 0, errors.New("truncated SOS")
				}
				segLen := int(binary.BigEndian.Uint16(data[pos:]))
				pos += segLen
				inScan = true
				continue
			}
			if marker >= 0xD0 && marker <= 0xD7 {
				continue
			}
			if marker == 0x01 {
				continue
			}
			if pos+1 >= len(data) {
				return 0, errors.New("truncated marker segment")
			}
			segLen := int(binary.BigEndian.Uint16(data[pos:]))
			if segLen < 2 {
				return 0, errors.New("invalid marker length")
			}
			pos += segLen
			continue
		}

		// in scan data
		if data[pos] == markerStart {
			if pos+1 >= len(data) {
				return 0, errors.New("truncated scan data")
			}
			next := data[pos+1]
			switch {
			case next == 0x00:
				pos += 2
				continue
			case next >= 0xD0 && next <= 0xD7:
				pos += 2
				continue
			case next == markerEOI:
				return pos + 2, nil
			default:
				// Attempt to parse marker within scan data.
				pos += 2
				if pos+1 >= len(data) {
					return 0, errors.New("truncated marker in scan")
				}
				segLen := int(binary.BigEndian.Uint16(data[pos:]))
				if segLen < 2 {
					return 0, errors.New("invalid marker length in scan")
				}
				pos += segLen
				continue
			}
		}
		pos++
	}
	return 0, errors.New("no EOI found")
}

func extractAppSegments(jpegData []byte) (app1 [][]byte, app2 [][]byte, err error) {
	if len(jpegData) < 4 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, nil, errors.New("invalid JPEG")
	}
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(jpegData) && jpegData[pos] == markerStart {
			pos++
		}
		if pos >= len(jpegData) {
			break
		}
		marker := jpegData[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if pos+1 >= len(jpegData) {
			return nil, nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos:]))
		if segLen < 2 || pos+segLen > len(jpegData) {
			return nil, nil, errors.New("invalid segment length")
		}
		segStart := pos + 2
		segEnd := pos + segLen
		switch marker {
		case markerAPP1:
			app1 = append(app1, append([]byte(nil), jpegData[segStart:segEnd]...))
		case markerAPP2:
			app2 = append(app2, append([]byte(nil), jpegData[segStart:segEnd]...))
		}
		pos = segEnd
	}
	return app1, app2, nil
}

func findXMP(app1 [][]byte) []byte {
	for _, seg := range app1 {
		if bytes.HasPrefix(seg, append([]byte(xmpNamespace), 0)) {
			return seg
		}
	}
	return nil
}

func findMPF(app2 [][]byte) []byte {
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, mpfSig) {
			return seg
		}
	}
	return nil
}

type appSegment struct {
	marker  byte
	payload []byte
}

// writeAppSegment writes marker, big-endian length and payload. The payload
// must not exceed 65533 bytes.
func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

// insertAppSegments inserts APP segments after SOI.
func insertAppSegments(jpegData []byte, segs []appSegment) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.Wrap(ErrDecode, "invalid jpeg")
	}
	var out bytes.Buffer
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	for _, s := range segs {
		writeAppSegment(&out, s.marker, s.payload)
	}
	out.Write(jpegData[2:])
	return out.Bytes(), nil
}
