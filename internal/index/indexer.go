package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/turnsearch/turnsearch/internal/config"
	"github.com/turnsearch/turnsearch/internal/embed"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/qdrant"
)

// Indexer is the Turn Indexer (§4.9): parallel dense/sparse/multi-vector
// embedding of a document batch, followed by a single upsert to the turn
// collection.
type Indexer struct {
	store        *qdrant.Client
	embedFactory *embed.Factory
	embedCfg     config.EmbedConfig
	collection   string
	log          *logger.Logger
}

// NewIndexer builds a turn indexer writing to collection (normally
// cfg.Search.TurnCollection).
func NewIndexer(store *qdrant.Client, embedFactory *embed.Factory, embedCfg config.EmbedConfig, collection string, log *logger.Logger) *Indexer {
	return &Indexer{store: store, embedFactory: embedFactory, embedCfg: embedCfg, collection: collection, log: log}
}

// IndexDocuments embeds and upserts docs, per §4.9. It returns the number of
// points successfully upserted; failures are logged and result in 0 (the
// batch is dropped, consumer redelivery governs retry).
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []*Document) int {
	if len(docs) == 0 {
		return 0
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}

	dense, sparse, mv, err := ix.embedBatch(ctx, contents)
	if err != nil {
		ix.log.Warn("turn indexer embedding failed, batch dropped", "error", err, "batch_size", len(docs))
		return 0
	}

	points := make([]qdrant.Point, len(docs))
	for i, d := range docs {
		p := qdrant.Point{
			ID:           d.ID,
			DenseVectors: map[string][]float32{qdrant.VectorTurnDense: dense[i]},
			Payload:      d.Payload(),
		}
		if sparse != nil {
			p.SparseVectors = map[string]qdrant.SparseVector{
				qdrant.VectorTurnSparse: {Indices: sparse[i].Indices, Values: sparse[i].Values},
			}
		}
		if mv != nil {
			p.MultiVectors = map[string][][]float32{qdrant.VectorTurnColbert: mv[i]}
		}
		points[i] = p
	}

	if err := ix.store.Upsert(ctx, ix.collection, points); err != nil {
		ix.log.Warn("turn indexer upsert failed, batch dropped", "error", err, "batch_size", len(docs))
		return 0
	}

	return len(points)
}

// embedBatch produces dense (always), sparse (if enabled) and multi-vector
// (if enabled) embedding artifacts for contents, in parallel, order-preserving
// by writing into pre-sized slices by index (§5).
func (ix *Indexer) embedBatch(ctx context.Context, contents []string) ([][]float32, []embed.SparseVector, [][][]float32, error) {
	var dense [][]float32
	var sparse []embed.SparseVector
	var mv [][][]float32

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		embedder, err := ix.embedFactory.TextDense()
		if err != nil {
			return err
		}
		vectors, err := embedder.EmbedDocuments(gctx, contents)
		if err != nil {
			return err
		}
		dense = vectors
		return nil
	})

	if ix.embedCfg.SparseEnabled {
		g.Go(func() error {
			embedder, err := ix.embedFactory.Sparse()
			if err != nil {
				return err
			}
			vectors, err := embedder.EmbedDocuments(gctx, contents)
			if err != nil {
				return err
			}
			sparse = vectors
			return nil
		})
	}

	if ix.embedCfg.MultiVector {
		g.Go(func() error {
			embedder, err := ix.embedFactory.MultiVector()
			if err != nil {
				return err
			}
			vectors, err := embedder.EmbedDocuments(gctx, contents)
			if err != nil {
				return err
			}
			mv = vectors
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return dense, sparse, mv, nil
}
