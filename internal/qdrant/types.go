// Package qdrant provides a typed facade over the vector store used by the
// retrieval core: named dense/sparse/multi-vector points, payload filtering,
// and server-side RRF fusion across prefetch branches.
package qdrant

// Named vector fields used across the turn, memory and session collections.
// Vector-name families are disjoint: turn_* belongs to the turn collection,
// text_*/code_* belongs to the memory and session collections. The core
// never writes a turn_* vector into the memory collection or vice versa.
const (
	VectorTextDense  = "text_dense"
	VectorCodeDense  = "code_dense"
	VectorTextSparse = "text_sparse"
	VectorTextColbert = "text_colbert"

	VectorTurnDense   = "turn_dense"
	VectorTurnSparse  = "turn_sparse"
	VectorTurnColbert = "turn_colbert"
)

// CollectionConfig defines the configuration for creating a collection.
type CollectionConfig struct {
	// Name is the collection name (will be prefixed).
	Name string

	// DenseVectors maps named dense vector fields to their dimensionality.
	DenseVectors map[string]uint64

	// SparseVectors names the sparse vector fields to configure.
	SparseVectors []string

	// MultiVectors maps named multi-vector fields to their row dimensionality.
	// Each point supplies a variable number of rows of this width.
	MultiVectors map[string]uint64

	// PayloadIndices lists payload fields that should carry a filterable index.
	PayloadIndices []PayloadIndex

	// OnDiskPayload stores payload on disk to save RAM.
	OnDiskPayload bool

	// IndexingThreshold is the number of vectors before the HNSW index is built.
	IndexingThreshold uint64

	// MemmapThreshold is the number of vectors before memory-mapping is used.
	MemmapThreshold uint64
}

// PayloadIndex names a payload field and the kind of index to build on it.
type PayloadIndex struct {
	Field string
	Kind  PayloadIndexKind
}

// PayloadIndexKind enumerates the supported payload index types.
type PayloadIndexKind int

const (
	PayloadIndexKeyword PayloadIndexKind = iota
	PayloadIndexInteger
	PayloadIndexText
)

// TurnCollectionConfig returns the schema for the turn collection (§6.3):
// named dense turn_dense, named sparse turn_sparse, optional multi-vector
// turn_colbert, with payload indices on tenant_id/session_id/timestamp/type.
func TurnCollectionConfig(name string, denseSize uint64, colbertRowSize uint64, multiVectorEnabled bool) CollectionConfig {
	cfg := CollectionConfig{
		Name:          name,
		DenseVectors:  map[string]uint64{VectorTurnDense: denseSize},
		SparseVectors: []string{VectorTurnSparse},
		PayloadIndices: []PayloadIndex{
			{Field: "tenant_id", Kind: PayloadIndexKeyword},
			{Field: "session_id", Kind: PayloadIndexKeyword},
			{Field: "timestamp", Kind: PayloadIndexInteger},
			{Field: "type", Kind: PayloadIndexKeyword},
		},
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
		MemmapThreshold:   50000,
	}
	if multiVectorEnabled {
		cfg.MultiVectors = map[string]uint64{VectorTurnColbert: colbertRowSize}
	}
	return cfg
}

// MemoryCollectionConfig returns the schema for the memory collection (§6.3):
// named dense text_dense and optional code_dense, sparse text_sparse, with
// payload indices on tenant_id/project/type/vt_end/timestamp.
func MemoryCollectionConfig(name string, denseSize uint64, codeEnabled bool) CollectionConfig {
	dense := map[string]uint64{VectorTextDense: denseSize}
	if codeEnabled {
		dense[VectorCodeDense] = denseSize
	}
	return CollectionConfig{
		Name:          name,
		DenseVectors:  dense,
		SparseVectors: []string{VectorTextSparse},
		PayloadIndices: []PayloadIndex{
			{Field: "tenant_id", Kind: PayloadIndexKeyword},
			{Field: "project", Kind: PayloadIndexKeyword},
			{Field: "type", Kind: PayloadIndexKeyword},
			{Field: "vt_end", Kind: PayloadIndexInteger},
			{Field: "timestamp", Kind: PayloadIndexInteger},
		},
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
		MemmapThreshold:   50000,
	}
}

// SessionCollectionConfig returns the schema for the session collection
// (§6.3): named dense text_dense only (session summaries are text, never
// code), used exclusively by the session-aware retriever's stage 1.
func SessionCollectionConfig(name string, denseSize uint64) CollectionConfig {
	return CollectionConfig{
		Name:         name,
		DenseVectors: map[string]uint64{VectorTextDense: denseSize},
		PayloadIndices: []PayloadIndex{
			{Field: "tenant_id", Kind: PayloadIndexKeyword},
			{Field: "timestamp", Kind: PayloadIndexInteger},
		},
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
		MemmapThreshold:   50000,
	}
}

// Point represents a point to upsert into the vector store.
type Point struct {
	// ID is the unique point identifier.
	ID string

	// DenseVectors maps named dense fields to their vector values.
	DenseVectors map[string][]float32

	// SparseVectors maps named sparse fields to (indices, values) pairs.
	SparseVectors map[string]SparseVector

	// MultiVectors maps named multi-vector fields to their rows.
	MultiVectors map[string][][]float32

	// Payload is the metadata associated with this point.
	Payload map[string]any
}

// SparseVector holds a token-weight map as parallel index/value slices.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SearchFilter constrains a query to matching points. TenantID is mandatory;
// every other field is optional (§3.2). A filter with an empty TenantID is
// rejected before any store access.
type SearchFilter struct {
	TenantID string

	SessionID string
	Type      string
	Project   string

	// TimeRangeStartMS/TimeRangeEndMS bound an inclusive [start, end] window
	// over the "timestamp" payload field, in epoch milliseconds.
	TimeRangeStartMS *int64
	TimeRangeEndMS   *int64

	// VTEndAfterMS requires "vt_end" strictly greater than this value.
	VTEndAfterMS *int64
}

// Prefetch is one sub-retrieval branch of a fuse() call. Exactly one of
// DenseVector or SparseVector should be set.
type Prefetch struct {
	Field        string
	DenseVector  []float32
	SparseVector *SparseVector
	Limit        uint64
	Filter       *SearchFilter
}

// SearchResult represents a single ranked point.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	Name          string
	PointsCount   uint64
	Status        string
	SegmentsCount uint64
}
