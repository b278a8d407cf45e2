package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
)

// Query performs a single named-vector retrieval (§4.2 operation 2).
func (c *Client) Query(ctx context.Context, collection, field string, vector []float32, filter *SearchFilter, limit uint64, scoreThreshold *float32) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.StoreUnavailableError("client is closed", nil)
	}

	if err := requireTenant(filter); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if limit == 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Query:          qdrant.NewQueryDense(vector),
		Using:          qdrant.PtrOf(field),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildSearchFilter(filter),
		ScoreThreshold: scoreThreshold,
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, classifyStoreError("querying "+field+" in "+collection, err)
	}

	return scoredPointsToResults(results), nil
}

// QuerySparse performs a single named sparse-vector retrieval (§4.2 operation 3).
func (c *Client) QuerySparse(ctx context.Context, collection, field string, sv SparseVector, filter *SearchFilter, limit uint64, scoreThreshold *float32) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.StoreUnavailableError("client is closed", nil)
	}

	if err := requireTenant(filter); err != nil {
		return nil, err
	}

	if len(sv.Indices) == 0 {
		return nil, apperrors.StoreRejectedError("sparse vector has no terms", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if limit == 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Query:          qdrant.NewQuerySparse(sv.Indices, sv.Values),
		Using:          qdrant.PtrOf(field),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildSearchFilter(filter),
		ScoreThreshold: scoreThreshold,
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, classifyStoreError("querying sparse "+field+" in "+collection, err)
	}

	return scoredPointsToResults(results), nil
}

// Fuse performs server-side RRF fusion over N prefetch branches (§4.2
// operation 4). Each prefetch carries its own vector, field and per-branch
// limit; the top-level filter additionally constrains the fused result.
func (c *Client) Fuse(ctx context.Context, collection string, prefetches []Prefetch, filter *SearchFilter, limit uint64) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.StoreUnavailableError("client is closed", nil)
	}

	if err := requireTenant(filter); err != nil {
		return nil, err
	}

	if len(prefetches) == 0 {
		return nil, apperrors.StoreRejectedError("fuse requires at least one prefetch branch", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prefetchQueries := make([]*qdrant.PrefetchQuery, 0, len(prefetches))
	for _, pf := range prefetches {
		branchLimit := pf.Limit
		if branchLimit == 0 {
			branchLimit = 100
		}

		pq := &qdrant.PrefetchQuery{
			Using: qdrant.PtrOf(pf.Field),
			Limit: qdrant.PtrOf(branchLimit),
		}

		branchFilter := filter
		if pf.Filter != nil {
			branchFilter = pf.Filter
		}
		pq.Filter = buildSearchFilter(branchFilter)

		switch {
		case pf.SparseVector != nil:
			pq.Query = qdrant.NewQuerySparse(pf.SparseVector.Indices, pf.SparseVector.Values)
		case len(pf.DenseVector) > 0:
			pq.Query = qdrant.NewQueryDense(pf.DenseVector)
		default:
			return nil, apperrors.StoreRejectedError(fmt.Sprintf("prefetch branch %q has no vector", pf.Field), nil)
		}

		prefetchQueries = append(prefetchQueries, pq)
	}

	if limit == 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Prefetch:       prefetchQueries,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildSearchFilter(filter),
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, classifyStoreError("fusing query in "+collection, err)
	}

	return scoredPointsToResults(results), nil
}

// requireTenant enforces invariant §3.3.1: no search reaches the store
// without a tenant_id equality filter.
func requireTenant(filter *SearchFilter) error {
	if filter == nil || filter.TenantID == "" {
		return apperrors.StoreRejectedError("search filter must carry a non-empty tenant_id", nil)
	}
	return nil
}

// buildSearchFilter builds a vector-store filter from SearchFilter.
func buildSearchFilter(f *SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}

	var conditions []*qdrant.Condition

	conditions = append(conditions, keywordCondition("tenant_id", f.TenantID))

	if f.SessionID != "" {
		conditions = append(conditions, keywordCondition("session_id", f.SessionID))
	}
	if f.Type != "" {
		conditions = append(conditions, keywordCondition("type", f.Type))
	}
	if f.Project != "" {
		conditions = append(conditions, keywordCondition("project", f.Project))
	}

	if f.TimeRangeStartMS != nil || f.TimeRangeEndMS != nil {
		rng := &qdrant.Range{}
		if f.TimeRangeStartMS != nil {
			v := float64(*f.TimeRangeStartMS)
			rng.Gte = &v
		}
		if f.TimeRangeEndMS != nil {
			v := float64(*f.TimeRangeEndMS)
			rng.Lte = &v
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "timestamp",
					Range: rng,
				},
			},
		})
	}

	if f.VTEndAfterMS != nil {
		v := float64(*f.VTEndAfterMS)
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "vt_end",
					Range: &qdrant.Range{Gt: &v},
				},
			},
		})
	}

	return &qdrant.Filter{Must: conditions}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// scoredPointsToResults converts vector-store scored points to SearchResults.
func scoredPointsToResults(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))

	for _, p := range points {
		results = append(results, scoredPointToResult(p))
	}

	return results
}

// scoredPointToResult converts a single scored point to SearchResult.
func scoredPointToResult(p *qdrant.ScoredPoint) SearchResult {
	var id string
	switch v := p.Id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		id = v.Uuid
	case *qdrant.PointId_Num:
		id = fmt.Sprintf("%d", v.Num)
	}

	return SearchResult{
		ID:      id,
		Score:   p.Score,
		Payload: extractPayload(p.Payload),
	}
}

// extractPayload converts a vector-store payload map into a plain Go map.
func extractPayload(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = extractValue(v)
	}
	return result
}

func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			items = append(items, extractValue(item))
		}
		return items
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(kind.StructValue.Fields))
		for k, fv := range kind.StructValue.Fields {
			m[k] = extractValue(fv)
		}
		return m
	default:
		return nil
	}
}
