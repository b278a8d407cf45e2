package reranker

import (
	"context"
	"fmt"
	"strings"

	"github.com/turnsearch/turnsearch/internal/embed"
	"github.com/turnsearch/turnsearch/internal/llm"
	"github.com/turnsearch/turnsearch/internal/search/result"
)

func unknownTierError(name string) error {
	return fmt.Errorf("reranker: unknown tier %q", name)
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard is the fast tier's overlap scorer: intersection over union of
// query and document token sets.
func jaccard(queryTokens []string, docTokens []string) float32 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}
	qs := tokenSet(queryTokens)
	ds := tokenSet(docTokens)
	var intersect int
	for t := range qs {
		if _, ok := ds[t]; ok {
			intersect++
		}
	}
	union := len(qs) + len(ds) - intersect
	if union == 0 {
		return 0
	}
	return float32(intersect) / float32(union)
}

// --- fast tier: cheap lexical overlap, no embedding calls. ---

type fastTier struct{}

func newFastTier() *fastTier { return &fastTier{} }

func (f *fastTier) Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error) {
	qTokens := tokenize(query)
	out := make([]result.Item, len(documents))
	for i, d := range documents {
		d.Score = jaccard(qTokens, tokenize(d.Content))
		d.RerankTier = TierFast
		out[i] = d
	}
	return out, nil
}

// --- accurate tier: lexical overlap blended with dense cosine similarity. ---

type accurateTier struct {
	dense embed.DenseEmbedder
}

func newAccurateTier(dense embed.DenseEmbedder) *accurateTier {
	return &accurateTier{dense: dense}
}

func (a *accurateTier) Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error) {
	qVec, err := a.dense.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}
	docVecs, err := a.dense.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	qTokens := tokenize(query)
	out := make([]result.Item, len(documents))
	for i, d := range documents {
		lexical := jaccard(qTokens, tokenize(d.Content))
		semantic := cosineSimilarity(qVec, docVecs[i])
		d.Score = 0.3*lexical + 0.7*semantic
		d.RerankTier = TierAccurate
		out[i] = d
	}
	return out, nil
}

// --- code tier: accurate tier plus a bonus for shared code-shaped tokens. ---

type codeTier struct {
	dense embed.DenseEmbedder
}

func newCodeTier(dense embed.DenseEmbedder) *codeTier {
	return &codeTier{dense: dense}
}

func (c *codeTier) Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error) {
	qVec, err := c.dense.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}
	docVecs, err := c.dense.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	qTokens := tokenize(query)
	qCodeTokens := codeShapedTokens(qTokens)
	out := make([]result.Item, len(documents))
	for i, d := range documents {
		lexical := jaccard(qTokens, tokenize(d.Content))
		semantic := cosineSimilarity(qVec, docVecs[i])
		bonus := jaccard(qCodeTokens, codeShapedTokens(tokenize(d.Content)))
		d.Score = 0.2*lexical + 0.6*semantic + 0.2*bonus
		d.RerankTier = TierCode
		out[i] = d
	}
	return out, nil
}

func codeShapedTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if strings.ContainsAny(t, "_().[]{}:") || hasInternalUpper(t) {
			out = append(out, t)
		}
	}
	return out
}

func hasInternalUpper(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

// --- colbert tier: late-interaction sum-of-max similarity over row vectors. ---

type colbertTier struct {
	mv embed.MultiVectorEmbedder
}

func newColbertTier(mv embed.MultiVectorEmbedder) *colbertTier {
	return &colbertTier{mv: mv}
}

func (c *colbertTier) Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error) {
	qRows, err := c.mv.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}
	docRows, err := c.mv.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]result.Item, len(documents))
	for i, d := range documents {
		d.Score = maxSim(qRows, docRows[i])
		d.RerankTier = TierColbert
		out[i] = d
	}
	return out, nil
}

// maxSim is the ColBERT-style late-interaction score: for each query row,
// take the max cosine similarity against any document row, then average.
func maxSim(queryRows [][]float32, docRows [][]float32) float32 {
	if len(queryRows) == 0 || len(docRows) == 0 {
		return 0
	}
	var total float32
	for _, q := range queryRows {
		var best float32
		for _, d := range docRows {
			sim := cosineSimilarity(q, d)
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float32(len(queryRows))
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrtf32(na) * sqrtf32(nb))
}

func sqrtf32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

// --- llm tier: listwise LLM judge, subject to the sliding-window limiter. ---

type llmTier struct {
	client  *llm.Client
	limiter *RateLimiter
}

func newLLMTier(client *llm.Client, limiter *RateLimiter) *llmTier {
	return &llmTier{client: client, limiter: limiter}
}

func (l *llmTier) Rerank(ctx context.Context, query string, documents []result.Item) ([]result.Item, error) {
	if l.client == nil {
		return nil, fmt.Errorf("reranker: llm tier unavailable, no client configured")
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}

	estimatedCost := estimateCostCents(texts)
	if err := l.limiter.CheckAndRecord(estimatedCost); err != nil {
		return nil, err
	}

	scored, err := l.client.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	out := make([]result.Item, len(documents))
	for i, d := range documents {
		score := 50
		if i < len(scored.Scores) {
			score = scored.Scores[i]
		}
		d.Score = float32(score) / 100.0
		d.RerankTier = TierLLM
		out[i] = d
	}
	return out, nil
}

func estimateCostCents(texts []string) float64 {
	var chars int
	for _, t := range texts {
		chars += len(t)
	}
	estimatedTokens := float64(chars) / 4.0
	return estimatedTokens / 1000.0 * 0.15
}
