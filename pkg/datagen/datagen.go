// Package datagen produces sorted key arrays from parametric distributions.
//
// Sampling is by inverse CDF: a uniform draw from the caller's RNG is mapped
// through the distribution's quantile function, so the same seed always
// yields the same keys.
package datagen

import (
	"math/rand/v2"
	"slices"

	"curveindex/pkg/common"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DistTruncatedNormal = "truncnorm"
	DistUniform         = "uniform"
	DistLogNormal       = "lognormal"
)

// Generator returns n keys sorted ascending.
type Generator interface {
	Generate(n int) []common.KeyType
}

// TruncatedNormal samples N(Mean, SD) restricted to [Low, High].
type TruncatedNormal struct {
	Mean, SD  float64
	Low, High float64
	Rand      *rand.Rand
}

func (g TruncatedNormal) Generate(n int) []common.KeyType {
	dist := distuv.Normal{Mu: g.Mean, Sigma: g.SD}
	lo, hi := dist.CDF(g.Low), dist.CDF(g.High)
	return generate(n, g.Rand, func(u float64) float64 {
		return dist.Quantile(lo + u*(hi-lo))
	})
}

// Uniform samples [Low, High).
type Uniform struct {
	Low, High float64
	Rand      *rand.Rand
}

func (g Uniform) Generate(n int) []common.KeyType {
	dist := distuv.Uniform{Min: g.Low, Max: g.High}
	return generate(n, g.Rand, dist.Quantile)
}

// LogNormal samples exp(N(Mu, Sigma)).
type LogNormal struct {
	Mu, Sigma float64
	Rand      *rand.Rand
}

func (g LogNormal) Generate(n int) []common.KeyType {
	dist := distuv.LogNormal{Mu: g.Mu, Sigma: g.Sigma}
	return generate(n, g.Rand, dist.Quantile)
}

func generate(n int, rng *rand.Rand, quantile func(float64) float64) []common.KeyType {
	keys := make([]common.KeyType, n)
	for i := range keys {
		keys[i] = common.KeyType(quantile(openUnit(rng)))
	}
	slices.Sort(keys)
	return keys
}

// openUnit draws from (0, 1) so quantiles stay finite.
func openUnit(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}

// Params selects and parameterises a generator.
type Params struct {
	Distribution string
	Mean         float64
	SD           float64
	Low          float64
	High         float64
}

// New returns the generator named by p.Distribution, reading from rng.
// For lognormal, Mean and SD are the parameters of the underlying normal.
func New(p Params, rng *rand.Rand) (Generator, error) {
	if rng == nil {
		return nil, errors.New("datagen: nil random source")
	}
	switch p.Distribution {
	case DistTruncatedNormal, "":
		if p.SD <= 0 || p.Low >= p.High {
			return nil, errors.Errorf("datagen: invalid truncated normal sd=%g range=[%g,%g]", p.SD, p.Low, p.High)
		}
		return TruncatedNormal{Mean: p.Mean, SD: p.SD, Low: p.Low, High: p.High, Rand: rng}, nil
	case DistUniform:
		if p.Low >= p.High {
			return nil, errors.Errorf("datagen: invalid uniform range [%g,%g]", p.Low, p.High)
		}
		return Uniform{Low: p.Low, High: p.High, Rand: rng}, nil
	case DistLogNormal:
		if p.SD <= 0 {
			return nil, errors.Errorf("datagen: invalid lognormal sigma %g", p.SD)
		}
		return LogNormal{Mu: p.Mean, Sigma: p.SD, Rand: rng}, nil
	default:
		return nil, errors.Errorf("datagen: unknown distribution %q", p.Distribution)
	}
}

// NewRand returns a PCG-backed RNG for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x853c49e6748fea9b))
}

// Sample draws count keys from keys with replacement.
func Sample(keys []common.KeyType, count int, rng *rand.Rand) []common.KeyType {
	if len(keys) == 0 || count <= 0 {
		return nil
	}
	out := make([]common.KeyType, count)
	for i := range out {
		out[i] = keys[rng.IntN(len(keys))]
	}
	return out
}
