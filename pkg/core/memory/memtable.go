package memory

import (
	"curveindex/pkg/common"

	"github.com/google/btree"
)

// Item maps a key to the first rank it occupies in the sorted array.
type Item struct {
	Key  common.KeyType
	Rank int
}

func less(a, b Item) bool {
	return a.Key < b.Key
}

// RankTree is a B-tree over a sorted key array, used as the comparison
// baseline for the learned index.
type RankTree struct {
	tree *btree.BTreeG[Item]
}

// NewRankTree loads sorted keys. Duplicates keep their first rank.
func NewRankTree(degree int, keys []common.KeyType) *RankTree {
	rt := &RankTree{tree: btree.NewG(degree, less)}
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		rt.tree.ReplaceOrInsert(Item{Key: k, Rank: i})
	}
	return rt
}

func (rt *RankTree) Get(key common.KeyType) (int, bool) {
	res, ok := rt.tree.Get(Item{Key: key})
	if !ok {
		return -1, false
	}
	return res.Rank, true
}

func (rt *RankTree) Count() int {
	return rt.tree.Len()
}
