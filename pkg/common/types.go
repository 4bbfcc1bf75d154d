package common

import "math"

// KeyType is the numeric key indexed by the learned index.
type KeyType float64

// IsSorted reports whether keys are non-decreasing and free of NaN.
// It returns the first offending position, or -1.
func IsSorted(keys []KeyType) (bool, int) {
	for i, k := range keys {
		if math.IsNaN(float64(k)) {
			return false, i
		}
		if i > 0 && keys[i-1] > k {
			return false, i
		}
	}
	return true, -1
}

// Keys converts float64 values into keys.
func Keys(vals ...float64) []KeyType {
	out := make([]KeyType, len(vals))
	for i, v := range vals {
		out[i] = KeyType(v)
	}
	return out
}
