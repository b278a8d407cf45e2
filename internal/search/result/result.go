// Package result defines the search result item (§3.2) shared by the
// fusion, reranker, post-processing and retriever packages. It is a leaf
// package so all of them can depend on it without import cycles.
package result

import "github.com/turnsearch/turnsearch/internal/qdrant"

// Item is a single search result as returned to a caller of the retrieval
// core. Score is always the final, comparable score; FusionScore and
// RerankerScore preserve the values it was derived from, per §3.3 invariant 4.
type Item struct {
	ID             string
	Score          float32
	FusionScore    *float32
	RerankerScore  *float32
	RerankTier     string
	Degraded       bool
	DegradedReason string
	Payload        map[string]any

	// SessionID and Content are convenience accessors mirroring payload
	// fields used frequently enough by post-processing to deserve a field.
	SessionID string
	Content   string
}

// FromStoreResult lifts a vector-store result into a result Item, pulling
// session_id and content out of the payload when present.
func FromStoreResult(sr qdrant.SearchResult) Item {
	item := Item{
		ID:      sr.ID,
		Score:   sr.Score,
		Payload: sr.Payload,
	}
	if sid, ok := sr.Payload["session_id"].(string); ok {
		item.SessionID = sid
	}
	if content, ok := sr.Payload["content"].(string); ok {
		item.Content = content
	}
	return item
}

// FromStoreResults lifts a batch of store results.
func FromStoreResults(results []qdrant.SearchResult) []Item {
	items := make([]Item, len(results))
	for i, sr := range results {
		items[i] = FromStoreResult(sr)
	}
	return items
}
