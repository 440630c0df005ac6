package hdrbake

import (
	"bytes"

	"github.com/pkg/errors"
)

// JoinOptions holds the metadata written around the two JPEG codestreams.
type JoinOptions struct {
	// ICCProfile is embedded in the primary image when not empty.
	ICCProfile []byte
	GainMap    GainMapXMP
	// LegacyMPF writes the fixed little-endian index with zero sizes.
	LegacyMPF bool
}

// Container is a split UltraHDR file.
type Container struct {
	PrimaryJPEG  []byte
	GainMapJPEG  []byte
	Meta         *GainMapXMP
	MPF          *MPFHeader
	ICCProfile   []byte
	ContainerXMP []byte
}

// Join assembles an UltraHDR container. The primary image receives the ICC
// profile, the directory XMP and the MPF index after SOI, in that order. The
// gain map image receives its hdrgm XMP and is appended after the primary.
func Join(primaryJPEG, gainmapJPEG []byte, opts JoinOptions) ([]byte, error) {
	if len(primaryJPEG) < 4 || len(gainmapJPEG) < 4 {
		return nil, errors.New("invalid JPEG data")
	}

	gmXMP, err := opts.GainMap.Marshal()
	if err != nil {
		return nil, err
	}
	secondary, err := insertAppSegments(gainmapJPEG, []appSegment{{marker: markerAPP1, payload: gmXMP}})
	if err != nil {
		return nil, errors.Wrap(err, "gain map image")
	}

	primaryXMP, err := ContainerXMP(len(secondary))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	for _, s := range iccSegments(opts.ICCProfile) {
		writeAppSegment(&out, s.marker, s.payload)
	}
	writeAppSegment(&out, markerAPP1, primaryXMP)

	var mpf MPFHeader
	if opts.LegacyMPF {
		mpf = LegacyMPFHeader()
	} else {
		mpfLen := 2 + 2 + NewMPFHeader(0, 0, 0).Size()
		primaryImageSize := out.Len() + mpfLen + len(primaryJPEG) - 2
		// Secondary offset is relative to the MPF TIFF header, which
		// follows the marker, length and signature.
		secondaryOffset := primaryImageSize - out.Len() - 8
		mpf = NewMPFHeader(primaryImageSize, len(secondary), secondaryOffset)
	}
	writeAppSegment(&out, markerAPP2, mpf.Marshal())

	out.Write(primaryJPEG[2:])
	out.Write(secondary)
	return out.Bytes(), nil
}

// Split extracts the primary and gain map JPEG images and their metadata
// from an UltraHDR container.
func Split(data []byte) (*Container, error) {
	ranges, err := scanJPEGs(data)
	if err != nil {
		return nil, err
	}
	if len(ranges) < 2 {
		return nil, errors.Wrap(ErrDecode, "gainmap image not found")
	}
	c := &Container{
		PrimaryJPEG: append([]byte(nil), data[ranges[0][0]:ranges[0][1]]...),
		GainMapJPEG: append([]byte(nil), data[ranges[1][0]:ranges[1][1]]...),
	}

	pApp1, pApp2, err := extractAppSegments(c.PrimaryJPEG)
	if err != nil {
		return nil, errors.Wrap(err, "primary image")
	}
	c.ContainerXMP = findXMP(pApp1)
	c.ICCProfile = collectICCProfile(pApp2)
	if seg := findMPF(pApp2); seg != nil {
		h, err := ParseMPF(seg)
		if err != nil {
			return nil, errors.Wrap(err, "primary image")
		}
		c.MPF = &h
	}

	gApp1, _, err := extractAppSegments(c.GainMapJPEG)
	if err != nil {
		return nil, errors.Wrap(err, "gain map image")
	}
	xmp := findXMP(gApp1)
	if xmp == nil {
		return nil, errors.Wrap(ErrDecode, "no gainmap metadata found")
	}
	if c.Meta, err = ParseGainMapXMP(xmp); err != nil {
		return nil, errors.Wrap(err, "gain map metadata")
	}
	return c, nil
}

// GainMapLength returns the gain map length advertised by the directory XMP.
func (c *Container) GainMapLength() (int, bool) {
	if c.ContainerXMP == nil {
		return 0, false
	}
	return containerGainMapLength(c.ContainerXMP)
}
