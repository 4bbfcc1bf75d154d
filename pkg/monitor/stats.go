package monitor

import (
	"sync/atomic"
)

// QueryStats counts query outcomes. Safe for concurrent use.
type QueryStats struct {
	Lookups      uint64
	Found        uint64
	Missing      uint64
	ExactHits    uint64
	Filtered     uint64
	WindowProbes uint64
}

func NewQueryStats() *QueryStats {
	return &QueryStats{}
}

// RecordLookup records one query. window is the number of slots searched
// after the model's prediction.
func (qs *QueryStats) RecordLookup(found, exact, filtered bool, window int) {
	atomic.AddUint64(&qs.Lookups, 1)
	if found {
		atomic.AddUint64(&qs.Found, 1)
	} else {
		atomic.AddUint64(&qs.Missing, 1)
	}
	if exact {
		atomic.AddUint64(&qs.ExactHits, 1)
	}
	if filtered {
		atomic.AddUint64(&qs.Filtered, 1)
	}
	if window > 0 {
		atomic.AddUint64(&qs.WindowProbes, uint64(window))
	}
}

func (qs *QueryStats) HitRatio() float64 {
	return ratio(atomic.LoadUint64(&qs.Found), atomic.LoadUint64(&qs.Lookups))
}

func (qs *QueryStats) ExactRatio() float64 {
	return ratio(atomic.LoadUint64(&qs.ExactHits), atomic.LoadUint64(&qs.Lookups))
}

// MeanWindow is the average window width per lookup.
func (qs *QueryStats) MeanWindow() float64 {
	return ratio(atomic.LoadUint64(&qs.WindowProbes), atomic.LoadUint64(&qs.Lookups))
}

func ratio(num, den uint64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
