package model

import (
	"fmt"

	"curveindex/pkg/common"

	"github.com/pkg/errors"
)

// RMIModel is a two-stage recursive model.
// Stage 1 maps a key onto one of fanout equal-width buckets of the key range.
// Stage 2 is a linear model per bucket predicting the global position.
type RMIModel struct {
	globalMin common.KeyType
	globalMax common.KeyType
	fanout    int
	buckets   []*LinearModel
}

func NewRMIModel(fanout int) *RMIModel {
	return &RMIModel{
		fanout:  fanout,
		buckets: make([]*LinearModel, fanout),
	}
}

func (rmi *RMIModel) bucketOf(key common.KeyType) int {
	keyRange := float64(rmi.globalMax - rmi.globalMin)
	if keyRange <= 0 {
		return 0
	}
	idx := int(float64(key-rmi.globalMin) / keyRange * float64(rmi.fanout))
	if idx >= rmi.fanout {
		idx = rmi.fanout - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Train assigns each key to its bucket together with its global position
// and fits every bucket. An empty bucket predicts the position at which its
// keys would have started.
func (rmi *RMIModel) Train(keys []common.KeyType) {
	if len(keys) == 0 {
		return
	}
	rmi.globalMin = keys[0]
	rmi.globalMax = keys[len(keys)-1]

	bucketKeys := make([][]common.KeyType, rmi.fanout)
	bucketPoss := make([][]int, rmi.fanout)
	for i, key := range keys {
		b := rmi.bucketOf(key)
		bucketKeys[b] = append(bucketKeys[b], key)
		bucketPoss[b] = append(bucketPoss[b], i)
	}

	seen := 0
	for i := 0; i < rmi.fanout; i++ {
		lm := NewLinearModel()
		if len(bucketKeys[i]) == 0 {
			lm.Intercept = float64(seen)
		} else {
			lm.TrainWithPos(bucketKeys[i], bucketPoss[i])
		}
		seen += len(bucketKeys[i])
		rmi.buckets[i] = lm
	}
}

func (rmi *RMIModel) Predict(key common.KeyType) float64 {
	return rmi.buckets[rmi.bucketOf(key)].Predict(key)
}

// Params flattens slope and intercept of every bucket.
func (rmi *RMIModel) Params() []float64 {
	out := make([]float64, 0, 2*rmi.fanout)
	for _, b := range rmi.buckets {
		out = append(out, b.Slope, b.Intercept)
	}
	return out
}

func (rmi *RMIModel) Name() string {
	return fmt.Sprintf("rmi(fanout=%d)", rmi.fanout)
}

// RMIFitter trains an RMIModel with the given fanout.
type RMIFitter struct {
	Fanout int
}

func (f RMIFitter) Fit(keys []common.KeyType) (Model, error) {
	if f.Fanout < 1 {
		return nil, errors.Wrapf(ErrFit, "rmi fanout must be >= 1, got %d", f.Fanout)
	}
	if len(keys) < 2 {
		return nil, errors.Wrapf(ErrFit, "rmi needs 2 samples, got %d", len(keys))
	}
	rmi := NewRMIModel(f.Fanout)
	rmi.Train(keys)
	return rmi, nil
}
