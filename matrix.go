package hdrbake

import "math"

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 [3][3]float32

// IdentityMatrix3 returns the 3x3 identity.
func IdentityMatrix3() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m×n.
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

// MulVec returns m×v.
func (m Matrix3) MulVec(v [3]float32) [3]float32 {
	return [3]float32{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Apply transforms a pixel as a column vector.
func (m Matrix3) Apply(p Pixel) Pixel {
	v := m.MulVec([3]float32{p.R, p.G, p.B})
	return Pixel{R: v[0], G: v[1], B: v[2]}
}

// Det returns the determinant, computed in float64.
func (m Matrix3) Det() float64 {
	a := m.f64()
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// Inverse returns the inverse of m. ok is false when m is singular or
// holds non-finite entries.
func (m Matrix3) Inverse() (inv Matrix3, ok bool) {
	a := m.f64()

	var scale float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := math.Abs(a[i][j])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Matrix3{}, false
			}
			if v > scale {
				scale = v
			}
		}
	}

	det := m.Det()
	if det == 0 || math.Abs(det) <= 1e-9*scale*scale*scale {
		return Matrix3{}, false
	}

	c := [3][3]float64{
		{a[1][1]*a[2][2] - a[1][2]*a[2][1], a[0][2]*a[2][1] - a[0][1]*a[2][2], a[0][1]*a[1][2] - a[0][2]*a[1][1]},
		{a[1][2]*a[2][0] - a[1][0]*a[2][2], a[0][0]*a[2][2] - a[0][2]*a[2][0], a[0][2]*a[1][0] - a[0][0]*a[1][2]},
		{a[1][0]*a[2][1] - a[1][1]*a[2][0], a[0][1]*a[2][0] - a[0][0]*a[2][1], a[0][0]*a[1][1] - a[0][1]*a[1][0]},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv[i][j] = float32(c[i][j] / det)
		}
	}
	return inv, true
}

func (m Matrix3) f64() [3][3]float64 {
	var a [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a[i][j] = float64(m[i][j])
		}
	}
	return a
}

// bradford is the Bradford cone response matrix.
var bradford = Matrix3{
	{0.8951, 0.2664, -0.1614},
	{-0.7502, 1.7135, 0.0367},
	{0.0389, -0.0685, 1.0296},
}

// BradfordAdaptation returns the matrix adapting XYZ values from the src
// white to the dst white.
func BradfordAdaptation(src, dst XyzCoord) Matrix3 {
	inv, _ := bradford.Inverse()
	s := bradford.MulVec([3]float32{src.X, src.Y, src.Z})
	d := bradford.MulVec([3]float32{dst.X, dst.Y, dst.Z})

	var scale Matrix3
	for i := 0; i < 3; i++ {
		scale[i][i] = d[i] / s[i]
	}
	return inv.Mul(scale).Mul(bradford)
}
