package learned

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"curveindex/pkg/common"
	"curveindex/pkg/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constModel predicts the same rank for every key.
type constModel struct{ v float64 }

func (c constModel) Predict(common.KeyType) float64 { return c.v }
func (c constModel) Params() []float64              { return []float64{c.v} }
func (c constModel) Name() string                   { return "const" }

func normalKeys(n int, seed uint64) []common.KeyType {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	keys := make([]common.KeyType, 0, n)
	for len(keys) < n {
		v := 4 + 2*rng.NormFloat64()
		if v < 0 || v > 10 {
			continue
		}
		keys = append(keys, common.KeyType(v))
	}
	slices.Sort(keys)
	return keys
}

func buildDefault(t *testing.T, keys []common.KeyType, opts ...Option) *Index {
	t.Helper()
	li, err := New(keys, model.PolynomialFitter{Degree: model.DefaultDegree}, opts...)
	require.NoError(t, err)
	return li
}

func TestConcreteScenario(t *testing.T) {
	keys := common.Keys(1, 3, 3, 7, 9, 12, 15)
	li := buildDefault(t, keys)

	pos, ok := li.Search(7)
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	pos, ok = li.Search(3)
	require.True(t, ok)
	assert.Contains(t, []int{1, 2}, pos)

	for _, absent := range []common.KeyType{8, 0, 100} {
		pos, ok = li.Search(absent)
		assert.False(t, ok, "key %v", absent)
		assert.Equal(t, NotFound, pos)
	}
}

func TestSearchFindsEveryBuildKey(t *testing.T) {
	keys := normalKeys(20000, 1)
	for _, fitter := range []model.Fitter{
		model.PolynomialFitter{Degree: 5},
		model.PolynomialFitter{Degree: 1},
		model.LinearFitter{},
		model.RMIFitter{Fanout: 128},
	} {
		li, err := New(keys, fitter)
		require.NoError(t, err)
		for i, k := range keys {
			pos, ok := li.Search(k)
			require.True(t, ok, "%s: key %v at %d not found", li.Model().Name(), k, i)
			require.Equal(t, k, keys[pos])
		}
	}
}

func TestSearchAbsentValues(t *testing.T) {
	keys := make([]common.KeyType, 1000)
	for i := range keys {
		keys[i] = common.KeyType(2 * i)
	}
	li := buildDefault(t, keys)
	for i := -5; i < 2005; i += 2 {
		v := common.KeyType(i)
		if i < 0 {
			v = common.KeyType(float64(i) - 0.5)
		}
		pos, ok := li.Search(v)
		assert.False(t, ok, "odd value %v reported present", v)
		assert.Equal(t, NotFound, pos)
	}
	_, ok := li.Search(common.KeyType(math.Inf(1)))
	assert.False(t, ok)
	_, ok = li.Search(common.KeyType(math.Inf(-1)))
	assert.False(t, ok)
	_, ok = li.Search(common.KeyType(math.NaN()))
	assert.False(t, ok)
}

func TestBoundaryQueries(t *testing.T) {
	keys := normalKeys(5000, 2)
	li := buildDefault(t, keys)

	pos, ok := li.Search(keys[0])
	require.True(t, ok)
	assert.Equal(t, keys[0], keys[pos])

	pos, ok = li.Search(keys[len(keys)-1])
	require.True(t, ok)
	assert.Equal(t, keys[len(keys)-1], keys[pos])

	_, ok = li.Search(keys[0] - 1)
	assert.False(t, ok)
	_, ok = li.Search(keys[len(keys)-1] + 1)
	assert.False(t, ok)
}

// oracleBounds recomputes the deviation bounds independently of Build.
func oracleBounds(keys []common.KeyType, m model.Model) ([]int, []int) {
	n := len(keys)
	pos := make([]int, n)
	neg := make([]int, n)
	for i, k := range keys {
		raw := m.Predict(k)
		p := int(math.Trunc(raw))
		if math.IsNaN(raw) || raw < 0 {
			p = 0
		}
		if raw > float64(n-1) {
			p = n - 1
		}
		if d := i - p; d > 0 && d > pos[p] {
			pos[p] = d
		} else if d < 0 && -d > neg[p] {
			neg[p] = -d
		}
	}
	return pos, neg
}

func TestBoundSoundness(t *testing.T) {
	keys := normalKeys(10000, 3)
	li := buildDefault(t, keys)
	wantPos, wantNeg := oracleBounds(keys, li.Model())
	for p := range keys {
		gotPos, gotNeg := li.Bounds(p)
		require.Equal(t, wantPos[p], gotPos, "positive deviation at %d", p)
		require.Equal(t, wantNeg[p], gotNeg, "negative deviation at %d", p)
	}
	for i, k := range keys {
		p := li.Predict(k)
		gotPos, gotNeg := li.Bounds(p)
		if d := i - p; d > 0 {
			assert.GreaterOrEqual(t, gotPos, d)
		} else if d < 0 {
			assert.GreaterOrEqual(t, gotNeg, -d)
		}
	}
}

func TestWindowContainsTrueIndex(t *testing.T) {
	keys := normalKeys(10000, 4)
	li := buildDefault(t, keys)
	for i, k := range keys {
		pr := li.Probe(k)
		require.True(t, pr.Found)
		if pr.Exact {
			continue
		}
		// Some index holding k lies in [Start, End); i itself does unless a
		// duplicate of k sits at the predicted slot.
		require.GreaterOrEqual(t, pr.Start, 0)
		require.LessOrEqual(t, pr.End, len(keys))
		lo, _ := slices.BinarySearch(keys, k)
		hi := lo
		for hi < len(keys) && keys[hi] == k {
			hi++
		}
		assert.True(t, pr.Start < hi && lo < pr.End, "window [%d,%d) misses key at %d", pr.Start, pr.End, i)
	}
}

func TestTruncationTowardZero(t *testing.T) {
	keys := common.Keys(0, 1, 2, 3, 4)
	li, err := Build(keys, constModel{v: 2.9})
	require.NoError(t, err)
	assert.Equal(t, 2, li.Predict(0))

	li, err = Build(keys, constModel{v: -0.7})
	require.NoError(t, err)
	assert.Equal(t, 0, li.Predict(0))

	li, err = Build(keys, constModel{v: 1e300})
	require.NoError(t, err)
	assert.Equal(t, 4, li.Predict(0))

	li, err = Build(keys, constModel{v: math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, 0, li.Predict(0))
}

func TestConstantModelWindowsCoverArray(t *testing.T) {
	keys := common.Keys(10, 20, 30, 40, 50, 60)
	li, err := Build(keys, constModel{v: 2})
	require.NoError(t, err)

	pos, neg := li.Bounds(2)
	assert.Equal(t, 3, pos)
	assert.Equal(t, 2, neg)
	for p := range keys {
		if p == 2 {
			continue
		}
		pos, neg := li.Bounds(p)
		assert.Zero(t, pos)
		assert.Zero(t, neg)
	}
	for i, k := range keys {
		got, ok := li.Search(k)
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
	_, ok := li.Search(35)
	assert.False(t, ok)
}

func TestZeroDeviationRightWindow(t *testing.T) {
	// Every key predicts its own slot, so all bounds are zero and any value
	// to the right of a slot meets an empty window.
	keys := common.Keys(0, 1, 2, 3, 4, 5)
	li, err := New(keys, model.LinearFitter{})
	require.NoError(t, err)
	for p := range keys {
		pos, neg := li.Bounds(p)
		require.Zero(t, pos)
		require.Zero(t, neg)
	}
	for _, v := range []common.KeyType{0.5, 4.5, 5.5, 1000} {
		pr := li.Probe(v)
		assert.False(t, pr.Found)
		assert.LessOrEqual(t, pr.Start, pr.End)
		assert.LessOrEqual(t, pr.End, len(keys))
	}
}

func TestSingleKey(t *testing.T) {
	li, err := Build(common.Keys(42), constModel{v: 0.3})
	require.NoError(t, err)
	pos, ok := li.Search(42)
	assert.True(t, ok)
	assert.Equal(t, 0, pos)
	_, ok = li.Search(41)
	assert.False(t, ok)
	_, ok = li.Search(43)
	assert.False(t, ok)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, constModel{})
	assert.True(t, errors.Is(err, ErrEmptyKeys))

	_, err = Build(common.Keys(1, 3, 2), constModel{})
	assert.True(t, errors.Is(err, ErrUnsortedKeys))

	_, err = Build(common.Keys(1, math.NaN()), constModel{})
	assert.True(t, errors.Is(err, ErrUnsortedKeys))

	_, err = New(nil, model.LinearFitter{})
	assert.True(t, errors.Is(err, ErrEmptyKeys))

	_, err = New(common.Keys(1, 2, 3), model.PolynomialFitter{Degree: 5})
	assert.True(t, errors.Is(err, model.ErrFit))
}

func TestBuildIsDeterministic(t *testing.T) {
	keys := normalKeys(30000, 5)
	m, err := model.PolynomialFitter{Degree: 5}.Fit(keys)
	require.NoError(t, err)

	seq, err := Build(keys, m)
	require.NoError(t, err)
	again, err := Build(keys, m)
	require.NoError(t, err)
	par, err := Build(keys, m, WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, seq.positiveDeviation, again.positiveDeviation)
	assert.Equal(t, seq.negativeDeviation, again.negativeDeviation)
	assert.Equal(t, seq.positiveDeviation, par.positiveDeviation)
	assert.Equal(t, seq.negativeDeviation, par.negativeDeviation)
}

func TestRepeatedQueriesAreIdempotent(t *testing.T) {
	keys := normalKeys(2000, 6)
	li := buildDefault(t, keys)
	for _, k := range keys[:200] {
		first, ok1 := li.Search(k)
		second, ok2 := li.Search(k)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, first, second)
	}
}

func TestConcurrentQueries(t *testing.T) {
	keys := normalKeys(10000, 7)
	li := buildDefault(t, keys, WithWorkers(4))

	var wg sync.WaitGroup
	errs := make(chan common.KeyType, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(keys); i += 8 {
				pos, ok := li.Search(keys[i])
				if !ok || keys[pos] != keys[i] {
					errs <- keys[i]
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for k := range errs {
		t.Errorf("concurrent search failed for %v", k)
	}
}

func TestBloomFilterOption(t *testing.T) {
	keys := normalKeys(5000, 8)
	plain := buildDefault(t, keys)
	filtered := buildDefault(t, keys, WithBloomFilter(0.01))

	for _, k := range keys {
		_, ok := filtered.Search(k)
		require.True(t, ok)
	}
	filteredOut := 0
	for i := 0; i < 1000; i++ {
		v := common.KeyType(10 + float64(i))
		_, ok1 := plain.Search(v)
		_, ok2 := filtered.Search(v)
		assert.False(t, ok1)
		assert.False(t, ok2)
		if filtered.Probe(v).Filtered {
			filteredOut++
		}
	}
	assert.Greater(t, filteredOut, 900)
	assert.True(t, filtered.Stats().BloomFilter)

	assert.Nil(t, plain.BloomStats())
	bs := filtered.BloomStats()
	require.NotNil(t, bs)
	assert.Equal(t, uint(5000), bs["bloom_count"])
}

func TestDuplicateHeavyKeys(t *testing.T) {
	keys := common.Keys(1, 1, 1, 2, 2, 2, 3, 3, 3, 3)
	li, err := New(keys, model.PolynomialFitter{Degree: model.DefaultDegree})
	require.NoError(t, err)
	for _, k := range keys {
		pos, ok := li.Search(k)
		require.True(t, ok, "key %g", float64(k))
		assert.Equal(t, k, keys[pos])
	}
	for _, v := range common.Keys(0, 1.5, 2.5, 4) {
		_, ok := li.Search(v)
		assert.False(t, ok, "value %g", float64(v))
	}
}

func TestSearchInMatchesSearch(t *testing.T) {
	keys := normalKeys(1000, 9)
	li := buildDefault(t, keys)
	for _, k := range keys[:100] {
		a, okA := li.Search(k)
		b, okB := li.SearchIn(keys, k)
		assert.Equal(t, okA, okB)
		assert.Equal(t, a, b)
	}
	_, ok := li.SearchIn(keys[:10], keys[0])
	assert.False(t, ok)
}

func TestProbeAgreesWithSearch(t *testing.T) {
	keys := normalKeys(3000, 10)
	li := buildDefault(t, keys)
	for _, v := range append(slices.Clone(keys[:300]), 11, -1, 5.000001) {
		pos, ok := li.Search(v)
		pr := li.Probe(v)
		assert.Equal(t, ok, pr.Found)
		assert.Equal(t, pos, pr.Position)
		assert.GreaterOrEqual(t, pr.Width(), 0)
	}
}

func TestStatsAndDiagnostics(t *testing.T) {
	keys := normalKeys(12000, 11)
	li := buildDefault(t, keys)

	s := li.Stats()
	assert.Equal(t, len(keys), s.Keys)
	assert.Len(t, s.Params, 6)
	assert.Greater(t, s.HitSlots, 0)
	assert.LessOrEqual(t, s.HitSlots, len(keys))
	assert.GreaterOrEqual(t, s.MeanAbsError, 0.0)

	points := li.Diagnostics(1000)
	assert.NotEmpty(t, points)
	assert.LessOrEqual(t, len(points), 1001)
	for _, p := range points {
		assert.Equal(t, p.RealPos-p.PredictedPos, p.Error)
		assert.Equal(t, keys[p.RealPos], p.Key)
	}
	// 12000 keys sampled every second key.
	assert.Len(t, li.Diagnostics(0), 6000)
}

func TestTrustedOrderAndContains(t *testing.T) {
	keys := normalKeys(500, 12)
	li := buildDefault(t, keys, WithTrustedOrder())
	assert.True(t, li.Contains(keys[99]))
	assert.False(t, li.Contains(-3))
	assert.Equal(t, len(keys), li.Size())
}
