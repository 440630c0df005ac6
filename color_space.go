package hdrbake

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ColorSpace identifies a named set of primaries and white point.
type ColorSpace int

const (
	ColorSpaceUnspecified ColorSpace = iota
	ColorSpaceRec709
	ColorSpaceRec2020
	ColorSpaceRec2100
	ColorSpaceACESAP0
	ColorSpaceACESAP1
	ColorSpaceDisplayP3
	ColorSpaceDCIP3
)

// Standard illuminants.
var (
	IlluminantD50  = XyCoord{X: 0.34567, Y: 0.35850}
	IlluminantD55  = XyCoord{X: 0.33242, Y: 0.34743}
	IlluminantD65  = XyCoord{X: 0.3127, Y: 0.3290}
	IlluminantD75  = XyCoord{X: 0.29902, Y: 0.31485}
	IlluminantACES = XyCoord{X: 0.32168, Y: 0.33767}
	IlluminantDCI  = XyCoord{X: 0.314, Y: 0.351}
)

// d50XYZ is the ICC profile connection space white.
var d50XYZ = XyzCoord{X: 0.9642, Y: 1.0, Z: 0.8249}

var (
	rec709 = Chromaticities{
		Red:   XyCoord{X: 0.640, Y: 0.330},
		Green: XyCoord{X: 0.300, Y: 0.600},
		Blue:  XyCoord{X: 0.150, Y: 0.060},
		White: IlluminantD65,
	}
	rec2020 = Chromaticities{
		Red:   XyCoord{X: 0.708, Y: 0.292},
		Green: XyCoord{X: 0.170, Y: 0.797},
		Blue:  XyCoord{X: 0.131, Y: 0.046},
		White: IlluminantD65,
	}
	acesAP0 = Chromaticities{
		Red:   XyCoord{X: 0.7347, Y: 0.2653},
		Green: XyCoord{X: 0.0, Y: 1.0},
		Blue:  XyCoord{X: 0.0001, Y: -0.0770},
		White: IlluminantACES,
	}
	acesAP1 = Chromaticities{
		Red:   XyCoord{X: 0.713, Y: 0.293},
		Green: XyCoord{X: 0.165, Y: 0.830},
		Blue:  XyCoord{X: 0.128, Y: 0.044},
		White: IlluminantACES,
	}
	displayP3 = Chromaticities{
		Red:   XyCoord{X: 0.680, Y: 0.320},
		Green: XyCoord{X: 0.265, Y: 0.690},
		Blue:  XyCoord{X: 0.150, Y: 0.060},
		White: IlluminantD65,
	}
	dciP3 = displayP3.WithWhite(IlluminantDCI)
)

var colorSpaceNames = map[ColorSpace]string{
	ColorSpaceRec709:    "rec709",
	ColorSpaceRec2020:   "rec2020",
	ColorSpaceRec2100:   "rec2100",
	ColorSpaceACESAP0:   "aces-ap0",
	ColorSpaceACESAP1:   "aces-ap1",
	ColorSpaceDisplayP3: "display-p3",
	ColorSpaceDCIP3:     "dci-p3",
}

var illuminantNames = map[string]XyCoord{
	"d50":  IlluminantD50,
	"d55":  IlluminantD55,
	"d65":  IlluminantD65,
	"d75":  IlluminantD75,
	"aces": IlluminantACES,
	"dci":  IlluminantDCI,
}

func (c ColorSpace) String() string {
	if n, ok := colorSpaceNames[c]; ok {
		return n
	}
	return "unspecified"
}

// Chromaticities returns the preset description. Rec. 2100 shares the
// Rec. 2020 primaries.
func (c ColorSpace) Chromaticities() Chromaticities {
	switch c {
	case ColorSpaceRec2020, ColorSpaceRec2100:
		return rec2020
	case ColorSpaceACESAP0:
		return acesAP0
	case ColorSpaceACESAP1:
		return acesAP1
	case ColorSpaceDisplayP3:
		return displayP3
	case ColorSpaceDCIP3:
		return dciP3
	default:
		return rec709
	}
}

// ColorSpaceNames lists accepted preset names in sorted order.
func ColorSpaceNames() []string {
	names := make([]string, 0, len(colorSpaceNames))
	for _, n := range colorSpaceNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseColorSpace resolves a preset name. Underscores and case are ignored.
func ParseColorSpace(name string) (ColorSpace, error) {
	n := strings.ReplaceAll(normalizeName(name), "-", "")
	for cs, csName := range colorSpaceNames {
		if n == strings.ReplaceAll(csName, "-", "") {
			return cs, nil
		}
	}
	return ColorSpaceUnspecified, errors.Wrapf(ErrConfig, "unknown color space %q, expected one of %s",
		name, strings.Join(ColorSpaceNames(), ", "))
}

// ParseIlluminant resolves an illuminant name such as "d65", or a correlated
// color temperature such as "5600K" via the black-body approximation.
func ParseIlluminant(name string) (XyCoord, error) {
	n := normalizeName(name)
	if xy, ok := illuminantNames[n]; ok {
		return xy, nil
	}
	if strings.HasSuffix(n, "k") {
		t, err := strconv.ParseFloat(strings.TrimSuffix(n, "k"), 32)
		if err == nil && t >= 1000 && t <= 25000 {
			return BlackBodyXy(float32(t)), nil
		}
	}
	return XyCoord{}, errors.Wrapf(ErrConfig, "unknown illuminant %q, expected d50, d55, d65, d75, aces, dci or a temperature like 6500K", name)
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// collectICCProfile joins APP2 ICC_PROFILE payloads in sequence order.
func collectICCProfile(icc [][]byte) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	chunks := make([]chunk, 0, len(icc))
	for _, p := range icc {
		// ICC APP2 payload: "ICC_PROFILE\0" + seq + total + profile bytes.
		if len(p) > len(iccSig)+2 && bytes.HasPrefix(p, iccSig) {
			chunks = append(chunks, chunk{seq: int(p[len(iccSig)]), data: p[len(iccSig)+2:]})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	var out []byte
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}
