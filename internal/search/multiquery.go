package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/turnsearch/turnsearch/internal/llm"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/search/fusion"
	"github.com/turnsearch/turnsearch/internal/search/result"
)

// UsageStats accumulates token/cost counters from the LLM usage reports
// returned by query expansion calls (§4.6 step 1).
type UsageStats struct {
	TotalTokens    int
	TotalCostCents float64
}

// MultiQueryConfig configures the multi-query retriever (§4.6).
type MultiQueryConfig struct {
	NumVariations   int // 1..10, default 3
	Strategies      []string
	IncludeOriginal bool
	RRFK            int // default 60
}

// DefaultMultiQueryConfig returns the spec's defaults.
func DefaultMultiQueryConfig() MultiQueryConfig {
	return MultiQueryConfig{NumVariations: 3, IncludeOriginal: true, RRFK: 60}
}

// MultiQueryRetriever wraps a base retriever with LLM-driven query expansion
// and client-side RRF fusion across the expanded variants.
type MultiQueryRetriever struct {
	base     *Retriever
	expander *llm.Client
	cfg      MultiQueryConfig
	log      *logger.Logger

	usageMu sync.Mutex
	usage   UsageStats
}

// NewMultiQueryRetriever builds a multi-query retriever over base.
func NewMultiQueryRetriever(base *Retriever, expander *llm.Client, cfg MultiQueryConfig, log *logger.Logger) *MultiQueryRetriever {
	if cfg.NumVariations <= 0 {
		cfg.NumVariations = 3
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	return &MultiQueryRetriever{base: base, expander: expander, cfg: cfg, log: log}
}

// Search runs expand -> per-variant search -> RRF fuse, per §4.6.
func (m *MultiQueryRetriever) Search(ctx context.Context, q Query) (items []result.Item, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			items, err = m.fallback(ctx, q, fmt.Sprintf("panic: %v", rec))
		}
	}()

	variants := m.expandQueries(ctx, q.Text)

	variantLimit := q.Limit * 2
	if variantLimit < 20 {
		variantLimit = 20
	}

	results := make([][]result.Item, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		i, variant := i, variant
		g.Go(func() error {
			variantQuery := q
			variantQuery.Text = variant
			variantQuery.Limit = variantLimit
			list, err := m.base.Search(gctx, variantQuery)
			if err != nil {
				return err
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return m.fallback(ctx, q, err.Error())
	}

	fused := fusion.FuseLists(results, m.cfg.RRFK)
	if len(fused) > q.Limit {
		fused = fused[:q.Limit]
	}
	return fused, nil
}

// expandQueries calls the LLM expander; on any failure it falls back to the
// original-only list, per §4.6 step 1.
func (m *MultiQueryRetriever) expandQueries(ctx context.Context, text string) []string {
	variants := []string{text}
	if m.expander == nil {
		return variants
	}

	expansion, err := m.expander.Expand(ctx, text, m.cfg.NumVariations, m.cfg.Strategies)
	m.recordUsage(expansion.Usage)
	if err != nil {
		m.log.Warn("query expansion failed, using original only", "error", err)
		return variants
	}

	dedup := make(map[string]struct{})
	if m.cfg.IncludeOriginal {
		dedup[normalizeVariant(text)] = struct{}{}
	} else {
		variants = nil
	}

	maxVariants := m.cfg.NumVariations
	if m.cfg.IncludeOriginal {
		maxVariants++
	}

	for _, v := range expansion.Queries {
		key := normalizeVariant(v)
		if key == "" {
			continue
		}
		if _, dup := dedup[key]; dup {
			continue
		}
		dedup[key] = struct{}{}
		variants = append(variants, v)
		if len(variants) >= maxVariants {
			break
		}
	}

	if len(variants) == 0 {
		variants = []string{text}
	}
	return variants
}

func normalizeVariant(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// recordUsage folds an expansion call's LLM usage report into the running
// totals, whether or not the call ultimately succeeded.
func (m *MultiQueryRetriever) recordUsage(u llm.Usage) {
	m.usageMu.Lock()
	defer m.usageMu.Unlock()
	m.usage.TotalTokens += u.TotalTokens
	m.usage.TotalCostCents += u.CostCents
}

// Usage returns the accumulated token/cost counters across all expansion
// calls made by this retriever so far.
func (m *MultiQueryRetriever) Usage() UsageStats {
	m.usageMu.Lock()
	defer m.usageMu.Unlock()
	return m.usage
}

// ResetUsage zeroes the accumulated usage counters.
func (m *MultiQueryRetriever) ResetUsage() {
	m.usageMu.Lock()
	defer m.usageMu.Unlock()
	m.usage = UsageStats{}
}

// fallback runs a single base search and marks every item degraded, per the
// pipeline-wide failure clause in §4.6 step 5.
func (m *MultiQueryRetriever) fallback(ctx context.Context, q Query, reason string) ([]result.Item, error) {
	items, err := m.base.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("expansion failed: %s", reason)
	for i := range items {
		items[i].Degraded = true
		items[i].DegradedReason = msg
	}
	return items, nil
}
