// Package postrank implements the post-processing stage (§4.8): session
// aggregation with a per-session cap, and id/content-fingerprint
// deduplication.
package postrank

import (
	"sort"

	"github.com/turnsearch/turnsearch/internal/search/result"
)

// AggregationConfig controls session aggregation.
type AggregationConfig struct {
	MaxPerSession int
	MinSessions   int
}

// AggregationResult reports aggregation statistics.
type AggregationResult struct {
	InputCount   int
	OutputCount  int
	EffectiveCap int
	SessionCount int
}

// AggregateBySession caps per-session contribution and interleaves sessions
// round-robin, per §4.8. The effective per-session cap doubles when the
// number of distinct sessions present is below MinSessions, so a query that
// only touches a couple of sessions is not needlessly starved.
func AggregateBySession(items []result.Item, cfg AggregationConfig) ([]result.Item, AggregationResult) {
	if len(items) == 0 {
		return items, AggregationResult{}
	}

	bySession := make(map[string][]result.Item)
	var withoutSession []result.Item
	var order []string
	seen := make(map[string]bool)

	for _, it := range items {
		if it.SessionID == "" {
			withoutSession = append(withoutSession, it)
			continue
		}
		if !seen[it.SessionID] {
			seen[it.SessionID] = true
			order = append(order, it.SessionID)
		}
		bySession[it.SessionID] = append(bySession[it.SessionID], it)
	}

	effectiveCap := cfg.MaxPerSession
	if len(order) < cfg.MinSessions {
		effectiveCap *= 2
	}

	for _, sid := range order {
		list := bySession[sid]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
		if effectiveCap > 0 && len(list) > effectiveCap {
			list = list[:effectiveCap]
		}
		bySession[sid] = list
	}

	out := make([]result.Item, 0, len(items))
	cursors := make(map[string]int, len(order))
	for {
		progressed := false
		for _, sid := range order {
			idx := cursors[sid]
			list := bySession[sid]
			if idx >= len(list) {
				continue
			}
			out = append(out, list[idx])
			cursors[sid] = idx + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}

	out = append(out, withoutSession...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return out, AggregationResult{
		InputCount:   len(items),
		OutputCount:  len(out),
		EffectiveCap: effectiveCap,
		SessionCount: len(order),
	}
}
