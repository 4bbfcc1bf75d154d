// Package bench times the learned index against binary search over the
// full array and against a B-tree, on the same query sample.
package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"curveindex/pkg/common"
	"curveindex/pkg/core/learned"
	"curveindex/pkg/core/memory"
	"curveindex/pkg/logging"
	"curveindex/pkg/monitor"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

var ErrMismatch = errors.New("learned index disagrees with binary search")

const defaultTreeDegree = 32

type Harness struct {
	index  *learned.Index
	keys   []common.KeyType
	tree   *memory.RankTree
	logger *slog.Logger
}

func New(idx *learned.Index, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Harness{
		index:  idx,
		keys:   idx.Keys(),
		tree:   memory.NewRankTree(defaultTreeDegree, idx.Keys()),
		logger: logger,
	}
}

type Result struct {
	Queries   int
	Rounds    int
	LearnedNs float64
	BinaryNs  float64
	BTreeNs   float64
	Stats     *monitor.QueryStats
}

// Speedup of the learned index over binary search.
func (r Result) Speedup() float64 {
	if r.LearnedNs == 0 {
		return 0
	}
	return r.BinaryNs / r.LearnedNs
}

// Verify checks every query against binary search and collects query
// outcome counters.
func (h *Harness) Verify(queries []common.KeyType) (*monitor.QueryStats, error) {
	stats := monitor.NewQueryStats()
	for _, q := range queries {
		pr := h.index.Probe(q)
		stats.RecordLookup(pr.Found, pr.Exact, pr.Filtered, pr.Width())

		_, want := slices.BinarySearch(h.keys, q)
		if pr.Found != want || (pr.Found && h.keys[pr.Position] != q) {
			return stats, errors.Wrapf(ErrMismatch, "key %g: learned found=%v pos=%d, binary found=%v",
				float64(q), pr.Found, pr.Position, want)
		}
	}
	return stats, nil
}

// Run verifies the queries, then times rounds passes over them with each
// structure and reports mean nanoseconds per query.
func (h *Harness) Run(ctx context.Context, queries []common.KeyType, rounds int) (Result, error) {
	if len(queries) == 0 {
		return Result{}, errors.New("bench: no queries")
	}
	if rounds < 1 {
		rounds = 1
	}
	stats, err := h.Verify(queries)
	if err != nil {
		return Result{}, err
	}

	res := Result{Queries: len(queries), Rounds: rounds, Stats: stats}
	var learnedDur, binaryDur, treeDur time.Duration
	sink := 0
	for r := 0; r < rounds; r++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := time.Now()
		for _, q := range queries {
			pos, _ := h.index.Search(q)
			sink += pos
		}
		learnedDur += time.Since(start)

		start = time.Now()
		for _, q := range queries {
			pos, _ := slices.BinarySearch(h.keys, q)
			sink += pos
		}
		binaryDur += time.Since(start)

		start = time.Now()
		for _, q := range queries {
			pos, _ := h.tree.Get(q)
			sink += pos
		}
		treeDur += time.Since(start)

		h.logger.Debug("bench round done", "round", r, "learned", learnedDur, "binary", binaryDur, "btree", treeDur)
	}

	total := float64(len(queries) * rounds)
	res.LearnedNs = float64(learnedDur.Nanoseconds()) / total
	res.BinaryNs = float64(binaryDur.Nanoseconds()) / total
	res.BTreeNs = float64(treeDur.Nanoseconds()) / total
	h.logger.Info("bench finished",
		"queries", len(queries),
		"rounds", rounds,
		"learned_ns", res.LearnedNs,
		"binary_ns", res.BinaryNs,
		"btree_ns", res.BTreeNs,
		"checksum", sink)
	return res, nil
}

// Report writes a human readable summary.
func (r Result) Report(w io.Writer) {
	fmt.Fprintf(w, "Learned Index Benchmark (%s queries x %d rounds)\n", humanize.Comma(int64(r.Queries)), r.Rounds)
	fmt.Fprintln(w, "---------------------------------------------------")
	fmt.Fprintf(w, "  learned index : %8.1f ns/query\n", r.LearnedNs)
	fmt.Fprintf(w, "  binary search : %8.1f ns/query\n", r.BinaryNs)
	fmt.Fprintf(w, "  b-tree        : %8.1f ns/query\n", r.BTreeNs)
	if r.Stats != nil {
		fmt.Fprintf(w, "  found %s / %s, exact predictions %.1f%%, mean window %.2f slots\n",
			humanize.Comma(int64(r.Stats.Found)), humanize.Comma(int64(r.Stats.Lookups)),
			100*r.Stats.ExactRatio(), r.Stats.MeanWindow())
	}
	fmt.Fprintln(w, "---------------------------------------------------")
	fmt.Fprintf(w, "Speedup over binary search: %.2fx\n", r.Speedup())
}
