package postrank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turnsearch/turnsearch/internal/search/result"
)

// DedupResult reports deduplication statistics.
type DedupResult struct {
	InputCount  int
	OutputCount int
	Removed     int
}

const fingerprintPrefixLen = 100

// fingerprint is the lowercased, stripped first 100 characters of content
// concatenated with "_" and the full content length, per §4.8. Two items
// with different lengths never collide even if their prefixes match.
func fingerprint(content string) string {
	trimmed := []rune(strings.TrimSpace(strings.ToLower(content)))
	prefix := trimmed
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}
	return fmt.Sprintf("%s_%d", string(prefix), len([]rune(content)))
}

// Deduplicate drops later occurrences of the same id, and later occurrences
// whose content fingerprint matches an earlier kept one. Items are sorted by
// score descending before iterating, so the kept occurrence of any
// duplicate is always the highest-scoring one.
func Deduplicate(items []result.Item) ([]result.Item, DedupResult) {
	if len(items) == 0 {
		return items, DedupResult{}
	}

	ordered := make([]result.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	seenIDs := make(map[string]struct{}, len(ordered))
	seenFingerprints := make(map[string]struct{}, len(ordered))
	out := make([]result.Item, 0, len(ordered))

	for _, it := range ordered {
		if _, dup := seenIDs[it.ID]; dup {
			continue
		}
		fp := fingerprint(it.Content)
		if _, dup := seenFingerprints[fp]; dup {
			continue
		}
		seenIDs[it.ID] = struct{}{}
		seenFingerprints[fp] = struct{}{}
		out = append(out, it)
	}

	return out, DedupResult{
		InputCount:  len(items),
		OutputCount: len(out),
		Removed:     len(items) - len(out),
	}
}
