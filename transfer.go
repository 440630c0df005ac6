package hdrbake

// GammaEncode applies the display transfer v^(1/gamma) to a linear value.
// Inputs are expected in [0, 1]; negative values produce NaN.
func GammaEncode(v, gamma float32) float32 {
	if v == 0 {
		return 0
	}
	return powf(v, 1/gamma)
}
