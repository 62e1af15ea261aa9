package mkapp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolyFit_InterpolatesLine(t *testing.T) {
	// Exactly degree+1 distinct points: the fit must have zero residual.
	xs := []float64{1, 2}
	ys := []float64{1, 3} // y = 2x - 1

	coeffs, err := polyFit(xs, ys, 1)
	require.NoError(t, err)
	require.Len(t, coeffs, 2)

	if !almostEqual(coeffs[0], -1, 1e-9) || !almostEqual(coeffs[1], 2, 1e-9) {
		t.Errorf("coeffs = %v, expected [-1 2]", coeffs)
	}

	a := approximation{coeffs: coeffs}
	for i, x := range xs {
		if got := a.valueAt(x); !almostEqual(got, ys[i], 1e-9) {
			t.Errorf("valueAt(%v) = %v, expected %v", x, got, ys[i])
		}
	}
}

func TestPolyFit_InterpolatesParabola(t *testing.T) {
	xs := []float64{0, 1, 2}
	ys := []float64{1, 2, 5} // y = x^2 + 1

	coeffs, err := polyFit(xs, ys, 2)
	require.NoError(t, err)

	a := approximation{coeffs: coeffs}
	for i, x := range xs {
		if got := a.valueAt(x); !almostEqual(got, ys[i], 1e-9) {
			t.Errorf("valueAt(%v) = %v, expected %v", x, got, ys[i])
		}
	}
	// Check a point off the samples too.
	if got := a.valueAt(3); !almostEqual(got, 10, 1e-8) {
		t.Errorf("valueAt(3) = %v, expected 10", got)
	}
}

func TestPolyFit_LeastSquaresOverdetermined(t *testing.T) {
	// Collinear points: overdetermined but consistent, residual zero.
	xs := []float64{1, 2, 3, 4, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 0.5*x + 2
	}

	coeffs, err := polyFit(xs, ys, 1)
	require.NoError(t, err)

	if !almostEqual(coeffs[0], 2, 1e-9) || !almostEqual(coeffs[1], 0.5, 1e-9) {
		t.Errorf("coeffs = %v, expected [2 0.5]", coeffs)
	}
}

func TestPolyFit_DegenerateTooFewDistinct(t *testing.T) {
	// Two samples but only one distinct x: cannot fit a line.
	_, err := polyFit([]float64{1, 1}, []float64{2, 4}, 1)
	require.ErrorIs(t, err, ErrDegenerateFit)

	// One sample, degree 1.
	_, err = polyFit([]float64{3}, []float64{7}, 1)
	require.ErrorIs(t, err, ErrDegenerateFit)
}

func TestPolyFit_LengthMismatch(t *testing.T) {
	_, err := polyFit([]float64{1, 2}, []float64{1}, 1)
	require.Error(t, err)
}

func TestPolyFit_DegreeZeroIsMean(t *testing.T) {
	coeffs, err := polyFit([]float64{1, 2, 3}, []float64{2, 4, 6}, 0)
	require.NoError(t, err)
	require.Len(t, coeffs, 1)

	// Least-squares constant fit is the arithmetic mean.
	if !almostEqual(coeffs[0], 4, 1e-9) {
		t.Errorf("coeffs[0] = %v, expected 4", coeffs[0])
	}
}

func TestApproximation_ValueAtHorner(t *testing.T) {
	a := approximation{coeffs: []float64{1, -2, 3}} // 3x^2 - 2x + 1
	cases := []struct{ x, want float64 }{
		{0, 1},
		{1, 2},
		{2, 9},
		{-1, 6},
	}
	for _, tc := range cases {
		if got := a.valueAt(tc.x); !almostEqual(got, tc.want, 1e-12) {
			t.Errorf("valueAt(%v) = %v, expected %v", tc.x, got, tc.want)
		}
	}
}

func TestApproximation_Valid(t *testing.T) {
	if (approximation{}).valid() {
		t.Error("zero approximation reported valid")
	}
	if !(approximation{coeffs: []float64{1}}).valid() {
		t.Error("fitted approximation reported invalid")
	}
}
