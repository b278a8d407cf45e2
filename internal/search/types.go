// Package search implements the Core, Multi-Query, and Session-Aware
// retrievers (§4.5-4.7): the query-side half of the retrieval pipeline.
package search

const (
	StrategyDense  = "dense"
	StrategySparse = "sparse"
	StrategyHybrid = "hybrid"
)

// Filters mirrors the search-filter entity (§3.2). TenantID is mandatory;
// everything else is optional.
type Filters struct {
	TenantID  string
	SessionID string
	Type      string
	Project   string

	TimeRangeStartMS *int64
	TimeRangeEndMS   *int64
	VTEndAfterMS     *int64
}

// Query is the search-query entity (§3.2).
type Query struct {
	Text      string
	Limit     int
	Threshold *float32
	Strategy  string // "", dense, sparse, hybrid
	Filters   Filters

	// Collection is the vector-store collection to query. Defaults to the
	// deployment's configured memory collection when empty.
	Collection string

	Rerank             bool
	RerankTier         string
	RerankFallbackTier string
	RerankDepth        int
}
