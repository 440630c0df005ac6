package hdrbake

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"github.com/pkg/errors"
	"seehuhn.de/go/icc"
)

// ICC tag signatures written by BuildICCProfile.
const (
	tagDesc = icc.TagType(0x64657363) // desc
	tagCprt = icc.TagType(0x63707274) // cprt
	tagWtpt = icc.TagType(0x77747074) // wtpt
	tagChad = icc.TagType(0x63686164) // chad
	tagRXYZ = icc.TagType(0x7258595A) // rXYZ
	tagGXYZ = icc.TagType(0x6758595A) // gXYZ
	tagBXYZ = icc.TagType(0x6258595A) // bXYZ
	tagRTRC = icc.TagType(0x72545243) // rTRC
	tagGTRC = icc.TagType(0x67545243) // gTRC
	tagBTRC = icc.TagType(0x62545243) // bTRC
)

const (
	iccCopyright = "No copyright, use freely"
	// iccMaxChunk is the profile payload per APP2 segment.
	iccMaxChunk = 0xFFFF - 2 - 14
)

// BuildICCProfile describes chromaticities with a pure gamma transfer as an
// ICC v4 display profile. Colorants are Bradford-adapted to the D50 PCS.
func BuildICCProfile(ch Chromaticities, gamma float32, description string) ([]byte, error) {
	m, err := ch.RGBToXYZ()
	if err != nil {
		return nil, errors.Wrap(err, "icc colorants")
	}
	chad := BradfordAdaptation(ch.White.WithLuma(1).XYZ(), d50XYZ)
	adapted := chad.Mul(m)

	trc := encodeParaGamma(gamma)
	p := &icc.Profile{
		Version:         icc.Version4_3_0,
		Class:           icc.DisplayDeviceProfile,
		ColorSpace:      icc.RGBSpace,
		PCS:             icc.PCSXYZSpace,
		CreationDate:    time.Now().UTC().Truncate(time.Second),
		RenderingIntent: icc.Perceptual,
		TagData: map[icc.TagType][]byte{
			tagDesc: encodeMLUC(description),
			tagCprt: encodeMLUC(iccCopyright),
			tagWtpt: encodeXYZ(d50XYZ),
			tagChad: encodeSF32(chad),
			tagRXYZ: encodeXYZ(XyzCoord{X: adapted[0][0], Y: adapted[1][0], Z: adapted[2][0]}),
			tagGXYZ: encodeXYZ(XyzCoord{X: adapted[0][1], Y: adapted[1][1], Z: adapted[2][1]}),
			tagBXYZ: encodeXYZ(XyzCoord{X: adapted[0][2], Y: adapted[1][2], Z: adapted[2][2]}),
			tagRTRC: trc,
			tagGTRC: trc,
			tagBTRC: trc,
		},
	}
	data, err := p.Encode()
	if err != nil {
		return nil, errors.Wrap(err, "encode ICC profile")
	}
	return data, nil
}

// ICCDescription returns a human readable name for a profile description.
func ICCDescription(ch Chromaticities, gamma float32) string {
	for cs := ColorSpaceRec709; cs <= ColorSpaceDCIP3; cs++ {
		if cs.Chromaticities().Equal(ch) {
			return "hdrbake " + cs.String() + " gamma " + formatFloat(gamma)
		}
	}
	return "hdrbake custom gamma " + formatFloat(gamma)
}

func s15Fixed16(v float32) uint32 {
	return uint32(int32(math.Round(float64(v) * 65536)))
}

func encodeXYZ(c XyzCoord) []byte {
	b := make([]byte, 20)
	copy(b, "XYZ ")
	binary.BigEndian.PutUint32(b[8:], s15Fixed16(c.X))
	binary.BigEndian.PutUint32(b[12:], s15Fixed16(c.Y))
	binary.BigEndian.PutUint32(b[16:], s15Fixed16(c.Z))
	return b
}

func encodeSF32(m Matrix3) []byte {
	b := make([]byte, 8+9*4)
	copy(b, "sf32")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			binary.BigEndian.PutUint32(b[8+(i*3+j)*4:], s15Fixed16(m[i][j]))
		}
	}
	return b
}

// encodeParaGamma writes a parametricCurveType of function type 0, y = x^g.
func encodeParaGamma(gamma float32) []byte {
	b := make([]byte, 16)
	copy(b, "para")
	binary.BigEndian.PutUint16(b[8:], 0)
	binary.BigEndian.PutUint32(b[12:], s15Fixed16(gamma))
	return b
}

// encodeMLUC writes a single en-US record multiLocalizedUnicodeType.
func encodeMLUC(s string) []byte {
	u := utf16.Encode([]rune(s))
	var buf bytes.Buffer
	buf.WriteString("mluc")
	_ = binary.Write(&buf, binary.BigEndian, [3]uint32{0, 1, 12})
	buf.WriteString("enUS")
	_ = binary.Write(&buf, binary.BigEndian, [2]uint32{uint32(len(u) * 2), 28})
	_ = binary.Write(&buf, binary.BigEndian, u)
	return buf.Bytes()
}

// iccSegments splits a profile into APP2 ICC_PROFILE payloads.
func iccSegments(profile []byte) []appSegment {
	n := (len(profile) + iccMaxChunk - 1) / iccMaxChunk
	segs := make([]appSegment, 0, n)
	for i := 0; i < n; i++ {
		lo := i * iccMaxChunk
		hi := lo + iccMaxChunk
		if hi > len(profile) {
			hi = len(profile)
		}
		payload := make([]byte, 0, len(iccSig)+2+hi-lo)
		payload = append(payload, iccSig...)
		payload = append(payload, byte(i+1), byte(n))
		payload = append(payload, profile[lo:hi]...)
		segs = append(segs, appSegment{marker: markerAPP2, payload: payload})
	}
	return segs
}
