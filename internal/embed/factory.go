package embed

import (
	"context"
	"sync"

	"github.com/turnsearch/turnsearch/internal/config"
	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// Factory hands out the right embedder instance per kind (§4.1). It never
// embeds anything itself; each kind is constructed lazily, at most once, on
// first use, and the instance is held for process lifetime.
type Factory struct {
	cfg   config.EmbedConfig
	log   *logger.Logger
	cache *EmbeddingCache

	textDenseOnce sync.Once
	textDense     DenseEmbedder

	codeDenseOnce sync.Once
	codeDense     DenseEmbedder

	sparseOnce sync.Once
	sparse     SparseEmbedder

	mvOnce sync.Once
	mv     MultiVectorEmbedder
}

// NewFactory creates the embedder factory. When cfg.RedisURL is set, a
// second-tier Redis cache backs the in-process LRU.
func NewFactory(cfg config.EmbedConfig, log *logger.Logger) *Factory {
	cache := NewEmbeddingCache(cfg.CacheSize)
	if cfg.RedisURL != "" {
		if err := cache.SetRedis(cfg.RedisURL, "embed:", log); err != nil {
			log.Warn("embed cache redis setup failed, continuing without second tier", "error", err)
		}
	}

	return &Factory{cfg: cfg, log: log, cache: cache}
}

// Get returns the embedder for kind, constructing it on first use. Returns
// EmbedderUnavailable when the kind is disabled by configuration.
func (f *Factory) Get(kind Kind) (Embedder, error) {
	switch kind {
	case KindTextDense:
		return f.TextDense()
	case KindCodeDense:
		return f.CodeDense()
	case KindSparse:
		return f.Sparse()
	case KindMultiVector:
		return f.MultiVector()
	default:
		return nil, apperrors.EmbedderUnavailableError(string(kind))
	}
}

// TextDense returns the generic-text dense embedder.
func (f *Factory) TextDense() (DenseEmbedder, error) {
	f.textDenseOnce.Do(func() {
		f.textDense = newCachedDense(NewHashDenseEmbedder(f.cfg.Dimensions, "text"), f.cache)
	})
	return f.textDense, nil
}

// CodeDense returns the code-specialized dense embedder. Disjoint from
// TextDense's embedding space by construction (§3.3 invariant 2's vector
// family separation extends to the spaces they are drawn from).
func (f *Factory) CodeDense() (DenseEmbedder, error) {
	f.codeDenseOnce.Do(func() {
		f.codeDense = newCachedDense(NewHashDenseEmbedder(f.cfg.Dimensions, "code"), f.cache)
	})
	return f.codeDense, nil
}

// Sparse returns the lexical sparse embedder, or EmbedderUnavailable when
// disabled by config.
func (f *Factory) Sparse() (SparseEmbedder, error) {
	if !f.cfg.SparseEnabled {
		return nil, apperrors.EmbedderUnavailableError(string(KindSparse))
	}
	f.sparseOnce.Do(func() {
		f.sparse = NewBleveSparseEmbedder(f.cfg.SparseTopK, 1<<20)
	})
	return f.sparse, nil
}

// MultiVector returns the late-interaction stand-in embedder, or
// EmbedderUnavailable when disabled by config.
func (f *Factory) MultiVector() (MultiVectorEmbedder, error) {
	if !f.cfg.MultiVector {
		return nil, apperrors.EmbedderUnavailableError(string(KindMultiVector))
	}
	f.mvOnce.Do(func() {
		dense, _ := f.TextDense()
		f.mv = NewSlicingMultiVectorEmbedder(dense, f.cfg.ColbertRows)
	})
	return f.mv, nil
}

// Close releases the shared embedding cache (including its Redis tier, if
// configured). Individual embedders hold no resources of their own.
func (f *Factory) Close() error {
	return f.cache.Close()
}

// cachedDense wraps a DenseEmbedder with the factory's shared embedding
// cache, keyed by raw text (the cache itself hashes).
type cachedDense struct {
	inner DenseEmbedder
	cache *EmbeddingCache
}

func newCachedDense(inner DenseEmbedder, cache *EmbeddingCache) DenseEmbedder {
	return &cachedDense{inner: inner, cache: cache}
}

func (c *cachedDense) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec)
	return vec, nil
}

func (c *cachedDense) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	uncachedIdx := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		if vec, ok := c.cache.Get(t); ok {
			out[i] = vec
		} else {
			uncachedIdx = append(uncachedIdx, i)
			uncachedTexts = append(uncachedTexts, t)
		}
	}

	if len(uncachedTexts) > 0 {
		vecs, err := c.inner.EmbedDocuments(ctx, uncachedTexts)
		if err != nil {
			return nil, err
		}
		for i, idx := range uncachedIdx {
			out[idx] = vecs[i]
			c.cache.Set(uncachedTexts[i], vecs[i])
		}
	}

	return out, nil
}

func (c *cachedDense) Close() error { return c.inner.Close() }
