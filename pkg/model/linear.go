package model

import (
	"curveindex/pkg/common"

	"github.com/pkg/errors"
)

type LinearModel struct {
	Slope     float64
	Intercept float64
	n         float64
	sumX      float64
	sumY      float64
	sumXY     float64
	sumXX     float64
}

func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

// Train fits keys against their positions in keys.
func (lm *LinearModel) Train(keys []common.KeyType) bool {
	lm.reset(float64(len(keys)))
	for i, key := range keys {
		lm.add(float64(key), float64(i))
	}
	return lm.solve()
}

// TrainWithPos fits keys against explicit positions. It reports false when
// the keys are degenerate; the model then predicts the mean position.
func (lm *LinearModel) TrainWithPos(keys []common.KeyType, positions []int) bool {
	lm.reset(float64(len(keys)))
	for i, key := range keys {
		lm.add(float64(key), float64(positions[i]))
	}
	return lm.solve()
}

func (lm *LinearModel) reset(n float64) {
	lm.n = n
	lm.sumX, lm.sumY, lm.sumXY, lm.sumXX = 0, 0, 0, 0
}

func (lm *LinearModel) add(x, y float64) {
	lm.sumX += x
	lm.sumY += y
	lm.sumXY += x * y
	lm.sumXX += x * x
}

func (lm *LinearModel) solve() bool {
	denominator := lm.n*lm.sumXX - lm.sumX*lm.sumX
	if denominator == 0 {
		lm.Slope = 0
		lm.Intercept = 0
		if lm.n > 0 {
			lm.Intercept = lm.sumY / lm.n
		}
		return false
	}
	lm.Slope = (lm.n*lm.sumXY - lm.sumX*lm.sumY) / denominator
	lm.Intercept = (lm.sumY - lm.Slope*lm.sumX) / lm.n
	return true
}

func (lm *LinearModel) Predict(key common.KeyType) float64 {
	return lm.Slope*float64(key) + lm.Intercept
}

func (lm *LinearModel) Params() []float64 {
	return []float64{lm.Slope, lm.Intercept}
}

func (lm *LinearModel) Name() string {
	return "linear"
}

// LinearFitter fits a closed-form simple linear regression.
type LinearFitter struct{}

func (LinearFitter) Fit(keys []common.KeyType) (Model, error) {
	if len(keys) < 2 {
		return nil, errors.Wrapf(ErrFit, "linear model needs 2 samples, got %d", len(keys))
	}
	lm := NewLinearModel()
	if !lm.Train(keys) {
		return nil, errors.Wrap(ErrFit, "linear model: keys have zero variance")
	}
	return lm, nil
}
