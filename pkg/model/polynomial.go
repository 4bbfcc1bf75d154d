package model

import (
	"fmt"
	"math"

	"curveindex/pkg/common"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultDegree gives a six parameter quintic.
const DefaultDegree = 5

// rankTolerance drops singular values below this fraction of the largest.
const rankTolerance = 1e-12

// Polynomial evaluates sum(Coefficients[j] * t^(d-j)) with
// t = (key - Center) / Scale. Coefficients are ordered highest power first.
type Polynomial struct {
	Coefficients []float64
	Center       float64
	Scale        float64
}

func (p *Polynomial) Predict(key common.KeyType) float64 {
	t := (float64(key) - p.Center) / p.Scale
	y := 0.0
	for _, c := range p.Coefficients {
		y = y*t + c
	}
	return y
}

func (p *Polynomial) Params() []float64 {
	out := make([]float64, len(p.Coefficients))
	copy(out, p.Coefficients)
	return out
}

func (p *Polynomial) Name() string {
	return fmt.Sprintf("polynomial(degree=%d)", len(p.Coefficients)-1)
}

// PolynomialFitter fits a polynomial of the given degree by linear least
// squares on the Vandermonde matrix of the normalised keys. Duplicate-heavy
// inputs with fewer distinct keys than parameters still fit.
type PolynomialFitter struct {
	Degree int
}

func (f PolynomialFitter) Fit(keys []common.KeyType) (Model, error) {
	n := f.Degree + 1
	if f.Degree < 0 {
		return nil, errors.Wrapf(ErrFit, "negative polynomial degree %d", f.Degree)
	}
	if len(keys) < n {
		return nil, errors.Wrapf(ErrFit, "polynomial degree %d needs %d samples, got %d", f.Degree, n, len(keys))
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, k := range keys {
		lo = math.Min(lo, float64(k))
		hi = math.Max(hi, float64(k))
	}
	center := (lo + hi) / 2
	scale := (hi - lo) / 2
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		scale = 1
	}

	a := mat.NewDense(len(keys), n, nil)
	b := mat.NewVecDense(len(keys), nil)
	for i, k := range keys {
		t := (float64(k) - center) / scale
		v := 1.0
		for j := n - 1; j >= 0; j-- {
			a.Set(i, j, v)
			v *= t
		}
		b.SetVec(i, float64(i))
	}

	// Fewer distinct keys than parameters leaves the system rank deficient;
	// the truncated SVD then yields the minimum-norm least squares answer.
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.Wrapf(ErrFit, "polynomial degree %d: svd did not converge", f.Degree)
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return nil, errors.Wrapf(ErrFit, "polynomial degree %d: zero rank system", f.Degree)
	}
	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)

	coeffs := make([]float64, n)
	for j := range coeffs {
		c := x.AtVec(j)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.Wrapf(ErrFit, "polynomial degree %d: non-finite coefficient %d", f.Degree, j)
		}
		coeffs[j] = c
	}
	return &Polynomial{Coefficients: coeffs, Center: center, Scale: scale}, nil
}
