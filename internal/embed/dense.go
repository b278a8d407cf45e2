package embed

import (
	"context"
	"math"
	"strings"

	"github.com/turnsearch/turnsearch/internal/pkg/hash"
)

// hashDenseEmbedder is a deterministic stand-in for a sentence-transformer:
// it projects whitespace-tokenized text into a fixed-width dense vector using
// feature hashing, then L2-normalizes. Two calls on the same text always
// produce the same vector; no model weights, no I/O.
type hashDenseEmbedder struct {
	dims int
	salt string // disjoint salts keep text_dense and code_dense from colliding
}

// NewHashDenseEmbedder creates a deterministic dense embedder of width dims.
// salt distinguishes embedding spaces that must not collide (e.g. "text" vs
// "code") even when fed the same input.
func NewHashDenseEmbedder(dims int, salt string) DenseEmbedder {
	if dims <= 0 {
		dims = 512
	}
	return &hashDenseEmbedder{dims: dims, salt: salt}
}

func (e *hashDenseEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.project(text), nil
}

func (e *hashDenseEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.project(t)
	}
	return out, nil
}

func (e *hashDenseEmbedder) Close() error { return nil }

// project hashes each token into a handful of dimensions with a sign derived
// from the hash, accumulates, then L2-normalizes the result.
func (e *hashDenseEmbedder) project(text string) []float32 {
	vec := make([]float32, e.dims)

	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		digest := hash.SHA256String(e.salt + ":" + tok)
		// Use successive 8-hex-char chunks of the digest as independent
		// (index, weight, sign) triples so one token touches several
		// dimensions, smoothing out hash collisions.
		for chunk := 0; chunk+8 <= len(digest); chunk += 8 {
			v := hexChunkToUint32(digest[chunk : chunk+8])
			idx := int(v) % e.dims
			sign := float32(1)
			if v&1 == 1 {
				sign = -1
			}
			weight := float32(v%1000)/1000 + 0.1
			vec[idx] += sign * weight
		}
	}

	return l2Normalize(vec)
}

func hexChunkToUint32(chunk string) uint32 {
	var v uint32
	for _, c := range chunk {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		}
	}
	return v
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
