package structure

import (
	"encoding/binary"
	"math"

	"curveindex/pkg/common"

	"github.com/cespare/xxhash/v2"
)

// BloomFilter is filled once with Add and then only read with Contains.
// Readers need no synchronisation once filling is complete.
type BloomFilter struct {
	bits  []uint64
	k     uint64
	m     uint64
	count uint
}

func NewBloomFilter(n uint, p float64) *BloomFilter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	// m = -(n * ln(p)) / (ln(2)^2)
	// k = (m / n) * ln(2)
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := uint64(math.Ceil(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	return &BloomFilter{
		bits: make([]uint64, (m+63)/64),
		k:    k,
		m:    m,
	}
}

func (bf *BloomFilter) Add(key common.KeyType) {
	h1, h2 := hashes(key)
	for i := uint64(0); i < bf.k; i++ {
		pos := (h1 + i*h2) % bf.m
		bf.bits[pos/64] |= 1 << (pos % 64)
	}
	bf.count++
}

func (bf *BloomFilter) Contains(key common.KeyType) bool {
	h1, h2 := hashes(key)
	for i := uint64(0); i < bf.k; i++ {
		pos := (h1 + i*h2) % bf.m
		if bf.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// hashes derives the two double-hashing seeds from the key's IEEE-754 bits.
// -0 and +0 compare equal, so they must hash equally.
func hashes(key common.KeyType) (uint64, uint64) {
	f := float64(key)
	if f == 0 {
		f = 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	h := xxhash.Sum64(buf[:])
	h1 := h & 0xffffffff
	h2 := h>>32 | 1
	return h1, h2
}

func (bf *BloomFilter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"bloom_bits_size": bf.m,
		"bloom_hashes":    bf.k,
		"bloom_count":     bf.count,
	}
}
