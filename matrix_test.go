package hdrbake

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

func TestMatrix3InverseRoundTrip(t *testing.T) {
	m := Matrix3{
		{2, -1, 0.5},
		{0.25, 3, -2},
		{1, 0, 4},
	}
	inv, ok := m.Inverse()
	require.True(t, ok)

	if diff := cmp.Diff(IdentityMatrix3(), m.Mul(inv), approx); diff != "" {
		t.Errorf("m×inv mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(IdentityMatrix3(), inv.Mul(m), approx); diff != "" {
		t.Errorf("inv×m mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrix3InverseSingular(t *testing.T) {
	for name, m := range map[string]Matrix3{
		"zero":           {},
		"duplicate rows": {{1, 2, 3}, {1, 2, 3}, {0, 0, 1}},
		"dependent cols": {{1, 2, 3}, {2, 4, 6.0001}, {3, 6, 9}},
		"nan":            {{1, 0, 0}, {0, float32NaN(), 0}, {0, 0, 1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := m.Inverse()
			assert.False(t, ok)
		})
	}
}

func TestMatrix3MulVec(t *testing.T) {
	m := Matrix3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	assert.Equal(t, [3]float32{14, 32, 50}, m.MulVec([3]float32{1, 2, 3}))
	assert.Equal(t, Pixel{R: 1, G: 4, B: 7}, m.Apply(Pixel{R: 1}))
}

func TestBradfordAdaptationMapsWhite(t *testing.T) {
	d65 := IlluminantD65.WithLuma(1).XYZ()
	m := BradfordAdaptation(d65, d50XYZ)
	got := m.MulVec(d65.vec())
	if diff := cmp.Diff(d50XYZ.vec(), got, approx); diff != "" {
		t.Errorf("adapted white mismatch (-want +got):\n%s", diff)
	}

	same := BradfordAdaptation(d50XYZ, d50XYZ)
	if diff := cmp.Diff(IdentityMatrix3(), same, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("identity adaptation mismatch (-want +got):\n%s", diff)
	}
}
