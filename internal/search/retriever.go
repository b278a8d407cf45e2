package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/turnsearch/turnsearch/internal/classify"
	"github.com/turnsearch/turnsearch/internal/config"
	"github.com/turnsearch/turnsearch/internal/embed"
	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/qdrant"
	"github.com/turnsearch/turnsearch/internal/search/reranker"
	"github.com/turnsearch/turnsearch/internal/search/result"
)

// Retriever is the Core Retriever (§4.5): strategy selection, dense/sparse/
// hybrid dispatch, and optional reranking.
type Retriever struct {
	store        *qdrant.Client
	embedFactory *embed.Factory
	router       *reranker.Router
	searchCfg    config.SearchConfig
	rerankerCfg  config.RerankerConfig
	log          *logger.Logger
}

// NewRetriever builds a Core Retriever.
func NewRetriever(store *qdrant.Client, embedFactory *embed.Factory, router *reranker.Router, searchCfg config.SearchConfig, rerankerCfg config.RerankerConfig, log *logger.Logger) *Retriever {
	return &Retriever{
		store:        store,
		embedFactory: embedFactory,
		router:       router,
		searchCfg:    searchCfg,
		rerankerCfg:  rerankerCfg,
		log:          log,
	}
}

// Search executes the Core Retriever's search(query) operation.
func (r *Retriever) Search(ctx context.Context, q Query) ([]result.Item, error) {
	if q.Filters.TenantID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "search requires a tenant_id")
	}

	var features *classify.Result
	strategy := q.Strategy
	if strategy == "" {
		if r.searchCfg.DefaultStrategy == StrategyHybrid {
			f := classify.Classify(q.Text)
			features = &f
			strategy = string(f.Strategy)
		} else {
			strategy = r.searchCfg.DefaultStrategy
		}
	}

	threshold := r.effectiveThreshold(q, strategy)

	denseField := qdrant.VectorTextDense
	if q.Filters.Type == "code" {
		denseField = qdrant.VectorCodeDense
	}

	filter := r.buildFilter(q.Filters)

	collection := q.Collection
	if collection == "" {
		collection = r.searchCfg.MemoryCollection
	}

	fetchLimit := uint64(q.Limit)
	if q.Rerank {
		depth := uint64(q.RerankDepth)
		if depth > fetchLimit {
			fetchLimit = depth
		}
	}

	var raw []qdrant.SearchResult
	var err error
	switch strategy {
	case StrategyDense:
		raw, err = r.searchDense(ctx, collection, denseField, q.Text, filter, fetchLimit, threshold)
	case StrategySparse:
		raw, err = r.searchSparse(ctx, collection, q.Text, filter, fetchLimit, threshold)
	default:
		raw, err = r.searchHybrid(ctx, collection, denseField, q.Text, filter, fetchLimit)
	}
	if err != nil {
		return nil, err
	}

	items := result.FromStoreResults(raw)

	if q.Rerank && len(items) > 0 {
		return r.rerankItems(ctx, q, items, features)
	}

	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (r *Retriever) effectiveThreshold(q Query, strategy string) *float32 {
	if strategy == StrategyHybrid {
		return nil
	}
	if q.Threshold != nil {
		return q.Threshold
	}
	var t float32
	switch strategy {
	case StrategyDense:
		t = r.searchCfg.MinScoreDense
	case StrategySparse:
		t = r.searchCfg.MinScoreSparse
	default:
		return nil
	}
	return &t
}

func (r *Retriever) buildFilter(f Filters) *qdrant.SearchFilter {
	return &qdrant.SearchFilter{
		TenantID:         f.TenantID,
		SessionID:        f.SessionID,
		Type:             f.Type,
		Project:          f.Project,
		TimeRangeStartMS: f.TimeRangeStartMS,
		TimeRangeEndMS:   f.TimeRangeEndMS,
		VTEndAfterMS:     f.VTEndAfterMS,
	}
}

func (r *Retriever) searchDense(ctx context.Context, collection, field, text string, filter *qdrant.SearchFilter, limit uint64, threshold *float32) ([]qdrant.SearchResult, error) {
	dense, err := r.embedFactory.TextDense()
	if field == qdrant.VectorCodeDense {
		dense, err = r.embedFactory.CodeDense()
	}
	if err != nil {
		return nil, err
	}
	vec, err := dense.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.store.Query(ctx, collection, field, vec, filter, limit, threshold)
}

func (r *Retriever) searchSparse(ctx context.Context, collection, text string, filter *qdrant.SearchFilter, limit uint64, threshold *float32) ([]qdrant.SearchResult, error) {
	sparse, err := r.embedFactory.Sparse()
	if err != nil {
		return nil, err
	}
	sv, err := sparse.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.store.QuerySparse(ctx, collection, qdrant.VectorTextSparse, qdrant.SparseVector{Indices: sv.Indices, Values: sv.Values}, filter, limit, threshold)
}

func (r *Retriever) searchHybrid(ctx context.Context, collection, denseField, text string, filter *qdrant.SearchFilter, limit uint64) ([]qdrant.SearchResult, error) {
	var denseVec []float32
	var sparseVec embed.SparseVector

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense, err := r.embedFactory.TextDense()
		if denseField == qdrant.VectorCodeDense {
			dense, err = r.embedFactory.CodeDense()
		}
		if err != nil {
			return err
		}
		v, err := dense.EmbedQuery(gctx, text)
		if err != nil {
			return err
		}
		denseVec = v
		return nil
	})
	g.Go(func() error {
		sparse, err := r.embedFactory.Sparse()
		if err != nil {
			return err
		}
		sv, err := sparse.EmbedQuery(gctx, text)
		if err != nil {
			return err
		}
		sparseVec = sv
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	oversample := limit * 2
	prefetches := []qdrant.Prefetch{
		{Field: denseField, DenseVector: denseVec, Limit: oversample, Filter: filter},
		{Field: qdrant.VectorTextSparse, SparseVector: &qdrant.SparseVector{Indices: sparseVec.Indices, Values: sparseVec.Values}, Limit: oversample, Filter: filter},
	}
	return r.store.Fuse(ctx, collection, prefetches, filter, limit)
}

func (r *Retriever) rerankItems(ctx context.Context, q Query, items []result.Item, features *classify.Result) ([]result.Item, error) {
	tier := q.RerankTier
	if tier == "" {
		tier = r.autoSelectTier(q, features)
	}

	originalScoreByID := make(map[string]float32, len(items))
	for _, it := range items {
		originalScoreByID[it.ID] = it.Score
	}

	ranked, actualTier, degraded := r.router.Rerank(ctx, q.Text, items, tier, q.Limit, r.rerankerCfg.TimeoutMS, q.RerankFallbackTier)

	out := make([]result.Item, len(ranked))
	for i, item := range ranked {
		fused := originalScoreByID[item.ID]
		item.FusionScore = &fused
		item.RerankTier = actualTier
		if degraded {
			item.DegradedReason = fmt.Sprintf("reranker tier %q degraded", tier)
		} else {
			rerankScore := item.Score
			item.RerankerScore = &rerankScore
		}
		out[i] = item
	}
	return out, nil
}

func (r *Retriever) autoSelectTier(q Query, features *classify.Result) string {
	if features == nil {
		f := classify.Classify(q.Text)
		features = &f
	}
	switch {
	case features.Features.HasCode:
		return reranker.TierCode
	case features.Features.IsQuestion && !features.Features.HasQuotes:
		return reranker.TierColbert
	case features.Complexity == classify.ComplexitySimple:
		return reranker.TierFast
	default:
		return reranker.TierAccurate
	}
}
