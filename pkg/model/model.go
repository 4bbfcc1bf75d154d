// Package model fits key-to-rank models over sorted key arrays.
//
// A Model maps a key to an estimated rank. A Fitter produces a Model from
// the sample set (keys[i], i). Families are interchangeable so the learned
// index never depends on the shape of the curve.
package model

import (
	"curveindex/pkg/common"

	"github.com/pkg/errors"
)

// ErrFit is returned, wrapped with context, when a model cannot be fitted:
// too few samples for the parameter count, a singular or ill-conditioned
// system, or non-finite parameters.
var ErrFit = errors.New("model fit failed")

const (
	FamilyPolynomial = "polynomial"
	FamilyLinear     = "linear"
	FamilyRMI        = "rmi"
)

// Model estimates the rank of a key. Predict returns the raw estimate,
// neither rounded nor clamped.
type Model interface {
	Predict(key common.KeyType) float64
	Params() []float64
	Name() string
}

// Fitter fits a Model to keys, pairing keys[i] with rank i.
type Fitter interface {
	Fit(keys []common.KeyType) (Model, error)
}

// NewFitter returns the fitter for a family name. degree applies to
// polynomial, fanout to rmi.
func NewFitter(family string, degree, fanout int) (Fitter, error) {
	switch family {
	case FamilyPolynomial, "":
		if degree < 0 {
			return nil, errors.Errorf("polynomial degree must be >= 0, got %d", degree)
		}
		return PolynomialFitter{Degree: degree}, nil
	case FamilyLinear:
		return LinearFitter{}, nil
	case FamilyRMI:
		if fanout < 1 {
			return nil, errors.Errorf("rmi fanout must be >= 1, got %d", fanout)
		}
		return RMIFitter{Fanout: fanout}, nil
	default:
		return nil, errors.Errorf("unknown model family %q", family)
	}
}
