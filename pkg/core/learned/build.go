package learned

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// deviationsParallel computes the same bounds as deviations over contiguous
// chunks. Several true ranks can map to one predicted slot across chunks,
// so slots are updated with a CAS max.
func (li *Index) deviationsParallel(workers int) ([]int, []int) {
	n := len(li.keys)
	pos := make([]atomic.Int64, n)
	neg := make([]atomic.Int64, n)

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				predicted := li.Predict(li.keys[i])
				difference := int64(i - predicted)
				if difference > 0 {
					atomicMax(&pos[predicted], difference)
				} else if difference < 0 {
					atomicMax(&neg[predicted], -difference)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	outPos := make([]int, n)
	outNeg := make([]int, n)
	for i := range pos {
		outPos[i] = int(pos[i].Load())
		outNeg[i] = int(neg[i].Load())
	}
	return outPos, outNeg
}

func atomicMax(slot *atomic.Int64, v int64) {
	for {
		cur := slot.Load()
		if v <= cur || slot.CompareAndSwap(cur, v) {
			return
		}
	}
}
