package fusion

import (
	"sort"

	"github.com/turnsearch/turnsearch/internal/search/result"
)

// FuseLists performs N-way Reciprocal Rank Fusion across an arbitrary number
// of ranked result lists (one per query variation in the multi-query
// retriever, §4.6), rather than the fixed two-way sparse/dense case handled
// by Fuse in rrf.go.
// Every list contributes with equal weight; a document's fused score is the
// sum of 1/(k+rank) across every list it appears in.
func FuseLists(lists [][]result.Item, k int) []result.Item {
	if k <= 0 {
		k = DefaultK
	}

	type accum struct {
		item  result.Item
		score float32
		seen  bool
	}

	byID := make(map[string]*accum)
	var order []string

	for _, list := range lists {
		for rank, it := range list {
			a, ok := byID[it.ID]
			if !ok {
				a = &accum{item: it}
				byID[it.ID] = a
				order = append(order, it.ID)
			}
			a.score += 1.0 / float32(k+rank+1)
			a.seen = true
		}
	}

	out := make([]result.Item, 0, len(order))
	for _, id := range order {
		a := byID[id]
		fused := a.score
		a.item.FusionScore = &fused
		a.item.Score = fused
		out = append(out, a.item)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
