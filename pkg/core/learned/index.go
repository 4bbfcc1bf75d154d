// Package learned implements a bounded learned index over a sorted key array.
//
// A fitted model predicts the rank of a key. During Build every key of the
// array is run through the model and, for each predicted slot, the largest
// observed overshoot and undershoot of the true rank is recorded. A query
// evaluates the model once, checks the predicted slot and otherwise binary
// searches only the window those bounds allow.
//
// The bounds are exact for keys present at build time. Any other value is
// searched in the window of its predicted slot; a match must be exact, so
// such a value is reported NotFound.
package learned

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"curveindex/pkg/common"
	"curveindex/pkg/core/structure"
	"curveindex/pkg/model"

	"github.com/pkg/errors"
)

// NotFound is the position returned alongside false by Search.
const NotFound = -1

var (
	ErrEmptyKeys    = errors.New("learned index needs at least one key")
	ErrUnsortedKeys = errors.New("keys must be non-decreasing and not NaN")
)

// Index is immutable after Build and safe for concurrent readers.
type Index struct {
	keys     []common.KeyType
	model    model.Model
	maxIndex int

	// Indexed by predicted slot, not by true rank.
	positiveDeviation []int
	negativeDeviation []int

	bloom *structure.BloomFilter
}

type options struct {
	workers    int
	logger     *slog.Logger
	bloomFPR   float64
	bloomOn    bool
	skipVerify bool
}

// Option configures Build.
type Option func(*options)

// WithWorkers splits the deviation pass across n goroutines.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBloomFilter checks a Bloom filter of the keys before evaluating the
// model, so most absent values are rejected without touching the array.
func WithBloomFilter(falsePositiveRate float64) Option {
	return func(o *options) {
		o.bloomOn = true
		o.bloomFPR = falsePositiveRate
	}
}

// WithTrustedOrder skips the O(N) sortedness check.
func WithTrustedOrder() Option {
	return func(o *options) { o.skipVerify = true }
}

// New fits a model with fitter and builds the index over keys.
func New(keys []common.KeyType, fitter model.Fitter, opts ...Option) (*Index, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	m, err := fitter.Fit(keys)
	if err != nil {
		return nil, errors.Wrap(err, "fit model")
	}
	return Build(keys, m, opts...)
}

// Build computes the deviation bounds of m over keys. keys is retained, not
// copied, and must not be modified while the index is in use.
func Build(keys []common.KeyType, m model.Model, opts ...Option) (*Index, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	if !o.skipVerify {
		if ok, pos := common.IsSorted(keys); !ok {
			return nil, errors.Wrapf(ErrUnsortedKeys, "at position %d", pos)
		}
	}

	start := time.Now()
	li := &Index{
		keys:     keys,
		model:    m,
		maxIndex: len(keys) - 1,
	}
	if o.workers > 1 && len(keys) >= 2*o.workers {
		li.positiveDeviation, li.negativeDeviation = li.deviationsParallel(o.workers)
	} else {
		li.positiveDeviation, li.negativeDeviation = li.deviations()
	}

	if o.bloomOn {
		li.bloom = structure.NewBloomFilter(uint(len(keys)), o.bloomFPR)
		for _, k := range keys {
			li.bloom.Add(k)
		}
	}

	if o.logger != nil && o.logger.Enabled(context.Background(), slog.LevelDebug) {
		s := li.Stats()
		o.logger.Debug("learned index built",
			"model", m.Name(),
			"keys", len(keys),
			"workers", o.workers,
			"max_positive_deviation", s.MaxPositiveDeviation,
			"max_negative_deviation", s.MaxNegativeDeviation,
			"elapsed", time.Since(start))
	}
	return li, nil
}

func (li *Index) deviations() ([]int, []int) {
	pos := make([]int, len(li.keys))
	neg := make([]int, len(li.keys))
	for i, key := range li.keys {
		predicted := li.Predict(key)
		difference := i - predicted
		if difference > 0 {
			pos[predicted] = max(pos[predicted], difference)
		} else if difference < 0 {
			neg[predicted] = max(neg[predicted], -difference)
		}
	}
	return pos, neg
}

// Predict returns the model's rank estimate truncated toward zero and
// clamped to [0, N-1]. Clamping happens before the integer conversion so
// out-of-range and infinite estimates stay well defined; NaN maps to 0.
func (li *Index) Predict(key common.KeyType) int {
	p := li.model.Predict(key)
	switch {
	case math.IsNaN(p), p <= 0:
		return 0
	case p >= float64(li.maxIndex):
		return li.maxIndex
	default:
		return int(p)
	}
}

// window returns the half-open search range for key around predicted.
func (li *Index) window(key common.KeyType, predicted int) (int, int) {
	if li.keys[predicted] < key {
		start := min(predicted+1, li.maxIndex)
		end := min(predicted+li.positiveDeviation[predicted]+1, li.maxIndex+1)
		return start, end
	}
	start := max(predicted-li.negativeDeviation[predicted], 0)
	return start, predicted
}

// Search returns the position of key in the indexed array, or NotFound and
// false. With duplicates any position holding key may be returned.
func (li *Index) Search(key common.KeyType) (int, bool) {
	if li.bloom != nil && !li.bloom.Contains(key) {
		return NotFound, false
	}
	predicted := li.Predict(key)
	if li.keys[predicted] == key {
		return predicted, true
	}
	start, end := li.window(key, predicted)
	off, found := slices.BinarySearch(li.keys[start:end], key)
	if !found {
		return NotFound, false
	}
	return start + off, true
}

// SearchIn searches keys, which must be the array the index was built over.
func (li *Index) SearchIn(keys []common.KeyType, key common.KeyType) (int, bool) {
	if len(keys) != len(li.keys) {
		return NotFound, false
	}
	saved := *li
	saved.keys = keys
	return saved.Search(key)
}

// Contains reports whether key is present.
func (li *Index) Contains(key common.KeyType) bool {
	_, ok := li.Search(key)
	return ok
}

// Bounds returns the deviation bounds recorded for a predicted slot.
func (li *Index) Bounds(slot int) (positive, negative int) {
	return li.positiveDeviation[slot], li.negativeDeviation[slot]
}

// BloomStats describes the absence filter, or is nil when Build ran
// without WithBloomFilter.
func (li *Index) BloomStats() map[string]interface{} {
	if li.bloom == nil {
		return nil
	}
	return li.bloom.Stats()
}

func (li *Index) Size() int {
	return len(li.keys)
}

func (li *Index) Model() model.Model {
	return li.model
}

func (li *Index) Keys() []common.KeyType {
	return li.keys
}
