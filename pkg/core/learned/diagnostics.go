package learned

import (
	"slices"

	"curveindex/pkg/common"
)

type DiagnosticPoint struct {
	Key          common.KeyType
	RealPos      int
	PredictedPos int
	Error        int
}

// Probe describes how a single query was resolved.
type Probe struct {
	Key       common.KeyType
	Predicted int
	Start     int
	End       int
	Position  int
	Found     bool
	Exact     bool
	Filtered  bool
}

// Width is the number of slots binary searched, zero for exact hits.
func (p Probe) Width() int {
	if p.Exact || p.Filtered {
		return 0
	}
	return p.End - p.Start
}

// Probe runs a query and returns its trace. It agrees with Search.
func (li *Index) Probe(key common.KeyType) Probe {
	pr := Probe{Key: key, Position: NotFound}
	if li.bloom != nil && !li.bloom.Contains(key) {
		pr.Filtered = true
		return pr
	}
	pr.Predicted = li.Predict(key)
	if li.keys[pr.Predicted] == key {
		pr.Start, pr.End = pr.Predicted, pr.Predicted+1
		pr.Position, pr.Found, pr.Exact = pr.Predicted, true, true
		return pr
	}
	pr.Start, pr.End = li.window(key, pr.Predicted)
	if off, found := slices.BinarySearch(li.keys[pr.Start:pr.End], key); found {
		pr.Position, pr.Found = pr.Start+off, true
	}
	return pr
}

// Diagnostics samples at most maxPoints keys with their real and predicted
// positions. maxPoints <= 0 selects 5000.
func (li *Index) Diagnostics(maxPoints int) []DiagnosticPoint {
	if maxPoints <= 0 {
		maxPoints = 5000
	}
	step := 1
	if len(li.keys) > maxPoints {
		step = len(li.keys) / maxPoints
	}

	results := make([]DiagnosticPoint, 0, len(li.keys)/step+1)
	for i := 0; i < len(li.keys); i += step {
		pred := li.Predict(li.keys[i])
		results = append(results, DiagnosticPoint{
			Key:          li.keys[i],
			RealPos:      i,
			PredictedPos: pred,
			Error:        i - pred,
		})
	}
	return results
}

// Stats summarises the model quality over the build keys.
type Stats struct {
	Model                string
	Params               []float64
	Keys                 int
	HitSlots             int
	ExactPredictions     int
	MaxPositiveDeviation int
	MaxNegativeDeviation int
	MeanAbsError         float64
	// MeanWindow averages the deviation bound consulted by build keys that
	// miss their predicted slot, over all keys.
	MeanWindow  float64
	BloomFilter bool
}

func (li *Index) Stats() Stats {
	s := Stats{
		Model:       li.model.Name(),
		Params:      li.model.Params(),
		Keys:        len(li.keys),
		BloomFilter: li.bloom != nil,
	}
	hit := make([]bool, len(li.keys))
	var absErr, window int
	for i, key := range li.keys {
		p := li.Predict(key)
		hit[p] = true
		d := i - p
		switch {
		case d == 0:
			s.ExactPredictions++
		case d > 0:
			absErr += d
			window += li.positiveDeviation[p]
		default:
			absErr -= d
			window += li.negativeDeviation[p]
		}
	}
	for i := range hit {
		if hit[i] {
			s.HitSlots++
		}
		s.MaxPositiveDeviation = max(s.MaxPositiveDeviation, li.positiveDeviation[i])
		s.MaxNegativeDeviation = max(s.MaxNegativeDeviation, li.negativeDeviation[i])
	}
	s.MeanAbsError = float64(absErr) / float64(len(li.keys))
	s.MeanWindow = float64(window) / float64(len(li.keys))
	return s
}
