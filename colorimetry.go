package hdrbake

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrSingularPrimaries is returned when a set of primaries cannot produce an
// invertible RGB to XYZ matrix.
var ErrSingularPrimaries = errors.New("singular primaries matrix")

// XyCoord is a CIE 1931 chromaticity coordinate.
type XyCoord struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// XyYCoord is a chromaticity with luminance.
type XyYCoord struct {
	Coords XyCoord
	Luma   float32
}

// XyzCoord is a CIE 1931 tristimulus value.
type XyzCoord struct {
	X, Y, Z float32
}

// Chromaticities describes an RGB color space by its primaries and white point.
type Chromaticities struct {
	Red   XyCoord `json:"red"`
	Green XyCoord `json:"green"`
	Blue  XyCoord `json:"blue"`
	White XyCoord `json:"white"`
}

// LuminanceWeights are the Y contributions of linear R, G and B.
type LuminanceWeights struct {
	Red, Green, Blue float32
}

// Luminance returns the weighted sum of p.
func (w LuminanceWeights) Luminance(p Pixel) float32 {
	return w.Red*p.R + w.Green*p.G + w.Blue*p.B
}

func (c XyCoord) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.X, c.Y)
}

// WithLuma attaches luminance to the chromaticity.
func (c XyCoord) WithLuma(luma float32) XyYCoord {
	return XyYCoord{Coords: c, Luma: luma}
}

// XYZ converts to tristimulus values. A luma below epsilon yields exact
// black.
func (c XyYCoord) XYZ() XyzCoord {
	if c.Luma < float32Epsilon {
		return XyzCoord{}
	}
	x, y := c.Coords.X, c.Coords.Y
	return XyzCoord{
		X: x * c.Luma / y,
		Y: c.Luma,
		Z: (1 - x - y) * c.Luma / y,
	}
}

// XyY converts to chromaticity plus luminance. When every component is below
// epsilon the result is white at zero luma.
func (c XyzCoord) XyY(white XyCoord) XyYCoord {
	if c.X < float32Epsilon && c.Y < float32Epsilon && c.Z < float32Epsilon {
		return XyYCoord{Coords: white}
	}
	sum := c.X + c.Y + c.Z
	return XyYCoord{
		Coords: XyCoord{X: c.X / sum, Y: c.Y / sum},
		Luma:   c.Y,
	}
}

func (c XyzCoord) vec() [3]float32 {
	return [3]float32{c.X, c.Y, c.Z}
}

// BlackBodyXy returns the approximate chromaticity of a Planckian radiator at
// the given temperature in kelvin.
func BlackBodyXy(kelvin float32) XyCoord {
	t := float64(kelvin)
	var x float64
	if t <= 7000 {
		x = 0.244063 + 0.09911e3/t + 2.9678e6/(t*t) - 4.6070e9/(t*t*t)
	} else {
		x = 0.237040 + 0.24748e3/t + 1.9018e6/(t*t) - 2.0064e9/(t*t*t)
	}
	y := -3*x*x + 2.87*x - 0.275
	return XyCoord{X: float32(x), Y: float32(y)}
}

// WithWhite returns a copy of c with the white point replaced.
func (c Chromaticities) WithWhite(w XyCoord) Chromaticities {
	c.White = w
	return c
}

// Equal reports whether both descriptions have identical coordinates.
func (c Chromaticities) Equal(o Chromaticities) bool {
	return c == o
}

// RGBToXYZ returns the matrix mapping linear RGB to XYZ, normalized so that
// RGB (1,1,1) maps to the white point at Y=1.
func (c Chromaticities) RGBToXYZ() (Matrix3, error) {
	r := c.Red.WithLuma(1).XYZ()
	g := c.Green.WithLuma(1).XYZ()
	b := c.Blue.WithLuma(1).XYZ()

	primaries := Matrix3{
		{r.X, g.X, b.X},
		{r.Y, g.Y, b.Y},
		{r.Z, g.Z, b.Z},
	}
	inv, ok := primaries.Inverse()
	if !ok {
		return Matrix3{}, errors.Wrapf(ErrSingularPrimaries, "primaries R%s G%s B%s", c.Red, c.Green, c.Blue)
	}

	s := inv.MulVec(c.White.WithLuma(1).XYZ().vec())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			primaries[i][j] *= s[j]
		}
	}
	return primaries, nil
}

// XYZToRGB returns the inverse of RGBToXYZ.
func (c Chromaticities) XYZToRGB() (Matrix3, error) {
	m, err := c.RGBToXYZ()
	if err != nil {
		return Matrix3{}, err
	}
	inv, ok := m.Inverse()
	if !ok {
		return Matrix3{}, errors.Wrap(ErrSingularPrimaries, "RGB to XYZ matrix")
	}
	return inv, nil
}

// ConversionMatrix returns the matrix converting linear RGB in c to linear
// RGB in dst. White points are not adapted.
func (c Chromaticities) ConversionMatrix(dst Chromaticities) (Matrix3, error) {
	src, err := c.RGBToXYZ()
	if err != nil {
		return Matrix3{}, errors.Wrap(err, "source space")
	}
	to, err := dst.XYZToRGB()
	if err != nil {
		return Matrix3{}, errors.Wrap(err, "destination space")
	}
	return to.Mul(src), nil
}

// LuminanceWeights returns the middle row of the RGB to XYZ matrix.
func (c Chromaticities) LuminanceWeights() (LuminanceWeights, error) {
	m, err := c.RGBToXYZ()
	if err != nil {
		return LuminanceWeights{}, err
	}
	return LuminanceWeights{Red: m[1][0], Green: m[1][1], Blue: m[1][2]}, nil
}

// ContainsPoint reports whether p lies inside or on the primaries triangle.
func (c Chromaticities) ContainsPoint(p XyCoord) bool {
	d1 := crossSign(p, c.Red, c.Green)
	d2 := crossSign(p, c.Green, c.Blue)
	d3 := crossSign(p, c.Blue, c.Red)

	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// Contains reports whether all three primaries of o lie within c.
func (c Chromaticities) Contains(o Chromaticities) bool {
	return c.ContainsPoint(o.Red) && c.ContainsPoint(o.Green) && c.ContainsPoint(o.Blue)
}

func crossSign(p, a, b XyCoord) float32 {
	return (p.X-b.X)*(a.Y-b.Y) - (a.X-b.X)*(p.Y-b.Y)
}

// HasNegative reports whether any coordinate is below zero.
func (c Chromaticities) HasNegative() bool {
	for _, v := range []float32{c.Red.X, c.Red.Y, c.Green.X, c.Green.Y, c.Blue.X, c.Blue.Y, c.White.X, c.White.Y} {
		if v < 0 {
			return true
		}
	}
	return false
}

// Valid reports whether all coordinates are finite.
func (c Chromaticities) Valid() bool {
	for _, v := range []float32{c.Red.X, c.Red.Y, c.Green.X, c.Green.Y, c.Blue.X, c.Blue.Y, c.White.X, c.White.Y} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}
