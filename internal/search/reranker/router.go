// Package reranker implements the reranker router (§4.4): a registry of
// lazily-constructed tiers with timeout-bounded execution, depth-1-bounded
// fallback, and uniform-score degradation when a tier fails at runtime.
package reranker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turnsearch/turnsearch/internal/embed"
	"github.com/turnsearch/turnsearch/internal/llm"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/search/result"
)

// Tier names, matching the registry in §4.4.
const (
	TierFast     = "fast"
	TierAccurate = "accurate"
	TierCode     = "code"
	TierColbert  = "colbert"
	TierLLM      = "llm"
)

// Tier reranks documents for a query, returning them reordered with Score
// set to the tier's own judgment.
type Tier interface {
	Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error)
}

type tierSlot struct {
	once sync.Once
	tier Tier
	err  error
}

// Router is the reranker registry (§4.4).
type Router struct {
	embedFactory *embed.Factory
	llmClient    *llm.Client
	limiter      *RateLimiter
	log          *logger.Logger

	mu    sync.Mutex
	slots map[string]*tierSlot
}

// NewRouter creates a reranker router. llmClient may be nil if the llm tier
// is never selected; construction of that tier fails lazily instead.
func NewRouter(embedFactory *embed.Factory, llmClient *llm.Client, limiterCfg RateLimiterConfig, log *logger.Logger) *Router {
	return &Router{
		embedFactory: embedFactory,
		llmClient:    llmClient,
		limiter:      NewRateLimiter(limiterCfg),
		log:          log,
		slots:        make(map[string]*tierSlot),
	}
}

func (r *Router) slot(name string) *tierSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		s = &tierSlot{}
		r.slots[name] = s
	}
	return s
}

// acquire lazily constructs (once) and returns the named tier.
func (r *Router) acquire(name string) (Tier, error) {
	s := r.slot(name)
	s.once.Do(func() {
		s.tier, s.err = r.construct(name)
	})
	return s.tier, s.err
}

func (r *Router) construct(name string) (Tier, error) {
	switch name {
	case TierFast:
		return newFastTier(), nil
	case TierAccurate:
		dense, err := r.embedFactory.TextDense()
		if err != nil {
			return nil, err
		}
		return newAccurateTier(dense), nil
	case TierCode:
		dense, err := r.embedFactory.TextDense()
		if err != nil {
			return nil, err
		}
		return newCodeTier(dense), nil
	case TierColbert:
		mv, err := r.embedFactory.MultiVector()
		if err != nil {
			return nil, err
		}
		return newColbertTier(mv), nil
	case TierLLM:
		return newLLMTier(r.llmClient, r.limiter), nil
	default:
		return nil, unknownTierError(name)
	}
}

// Rerank is the router's public contract (§4.4).
func (r *Router) Rerank(ctx context.Context, query string, documents []result.Item, tier string, topK int, timeoutMS int, fallbackTier string) (ranked []result.Item, actualTier string, degraded bool) {
	return r.rerank(ctx, query, documents, tier, topK, timeoutMS, fallbackTier, 0)
}

func (r *Router) rerank(ctx context.Context, query string, documents []result.Item, tier string, topK int, timeoutMS int, fallbackTier string, depth int) ([]result.Item, string, bool) {
	if len(documents) == 0 {
		return nil, tier, false
	}

	t, err := r.acquire(tier)
	if err != nil {
		r.log.Warn("reranker tier construction failed", "tier", tier, "error", err)
		return r.handleFailure(ctx, query, documents, tier, topK, timeoutMS, fallbackTier, depth, failureGeneric)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	ranked, err := t.Rerank(callCtx, query, documents)
	if err != nil {
		class := classifyFailure(callCtx, err)
		r.log.Warn("reranker tier runtime failure", "tier", tier, "class", class)
		return r.handleFailure(ctx, query, documents, tier, topK, timeoutMS, fallbackTier, depth, class)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	// depth > 0 means this call is itself a fallback attempt reached via
	// handleFailure: a successful fallback is still a degraded result (§8.4
	// scenario 3), even though the tier's own call succeeded.
	return ranked, tier, depth > 0
}

type failureClass string

const (
	failureTimeout   failureClass = "timeout"
	failureBudget    failureClass = "budget"
	failureCount     failureClass = "request-count"
	failureGeneric   failureClass = "generic"
)

func classifyFailure(ctx context.Context, err error) failureClass {
	if ctx.Err() == context.DeadlineExceeded {
		return failureTimeout
	}
	if rle, ok := err.(*rateLimitError); ok {
		if rle.kind == "budget" {
			return failureBudget
		}
		return failureCount
	}
	return failureGeneric
}

func (r *Router) handleFailure(ctx context.Context, query string, documents []result.Item, tier string, topK int, timeoutMS int, fallbackTier string, depth int, class failureClass) ([]result.Item, string, bool) {
	if depth < 1 && fallbackTier != "" && fallbackTier != tier {
		return r.rerank(ctx, query, documents, fallbackTier, topK, timeoutMS, "", depth+1)
	}
	return degradedResults(documents, topK), tier, true
}

// degradedResults synthesizes score-0.5 results in original order, per §4.4.
func degradedResults(documents []result.Item, topK int) []result.Item {
	out := make([]result.Item, len(documents))
	for i, d := range documents {
		d.Score = 0.5
		d.Degraded = true
		out[i] = d
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
