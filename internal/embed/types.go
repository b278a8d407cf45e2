// Package embed provides the embedder factory (§4.1): deterministic pure-Go
// stand-ins for dense, sparse and multi-vector embedding, hidden behind a
// narrow Embedder interface so callers never depend on a concrete backend.
package embed

import "context"

// Kind names an embedder family, matching the named-vector fields they feed.
type Kind string

const (
	KindTextDense   Kind = "text_dense"
	KindCodeDense   Kind = "code_dense"
	KindSparse      Kind = "sparse"
	KindMultiVector Kind = "multi_vector"
)

// SparseVector is a term-index/weight pair list, same shape the vector-store
// client expects for a named sparse field.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Embedder produces dense, sparse or multi-vector representations of text.
// A single concrete type only ever implements the methods its kind needs;
// Factory.Get returns the right narrowed interface per kind.
type Embedder interface {
	Close() error
}

// DenseEmbedder backs KindTextDense and KindCodeDense.
type DenseEmbedder interface {
	Embedder
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEmbedder backs KindSparse.
type SparseEmbedder interface {
	Embedder
	EmbedQuery(ctx context.Context, text string) (SparseVector, error)
	EmbedDocuments(ctx context.Context, texts []string) ([]SparseVector, error)
}

// MultiVectorEmbedder backs KindMultiVector.
type MultiVectorEmbedder interface {
	Embedder
	EmbedQuery(ctx context.Context, text string) ([][]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][][]float32, error)
}
