package mkapp

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// approximation is a fitted polynomial model of the k-nearest-neighbor
// distance as a function of k. Coefficients are ordered by ascending power.
// For trees fit in log-log space the stored polynomial maps log(k) to
// log(distance); the caller applies exp after evaluation.
//
// An approximation is immutable once attached to an entry; recomputation
// always replaces the whole coefficient vector.
type approximation struct {
	coeffs []float64
}

// valueAt evaluates the polynomial at x using Horner's rule.
func (a approximation) valueAt(x float64) float64 {
	var y float64
	for i := len(a.coeffs) - 1; i >= 0; i-- {
		y = y*x + a.coeffs[i]
	}
	return y
}

func (a approximation) valid() bool { return len(a.coeffs) > 0 }

// polyFit performs a least-squares polynomial regression of degree `degree`
// over the sample points (xs[i], ys[i]). It returns the degree+1 coefficients
// by ascending power, or ErrDegenerateFit if the samples contain fewer than
// degree+1 distinct x values.
func polyFit(xs, ys []float64, degree int) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, errors.Errorf("mkapp: sample length mismatch: %d xs vs %d ys", len(xs), len(ys))
	}
	if countDistinct(xs) < degree+1 {
		return nil, errors.Wrapf(ErrDegenerateFit, "%d distinct samples, degree %d", countDistinct(xs), degree)
	}

	// Vandermonde design matrix: row i is [1, x_i, x_i^2, ..., x_i^degree].
	v := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		p := 1.0
		for j := 0; j <= degree; j++ {
			v.Set(i, j, p)
			p *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var c mat.VecDense
	if err := c.SolveVec(v, b); err != nil {
		return nil, errors.Wrap(ErrDegenerateFit, err.Error())
	}

	coeffs := make([]float64, degree+1)
	copy(coeffs, c.RawVector().Data)
	return coeffs, nil
}

func countDistinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}
