package embed

import (
	"context"
	"strconv"
	"strings"
)

// slicingMultiVectorEmbedder builds a late-interaction-style representation
// by giving each whitespace token its own dense row, reusing the hash
// projection embedder's space but salted per-token so rows are distinct.
// Row count is capped at rows; a text with no whitespace tokens yields a
// single whole-text row, so every document carries at least one row.
type slicingMultiVectorEmbedder struct {
	dense DenseEmbedder
	rows  int
}

// NewSlicingMultiVectorEmbedder creates a multi-vector embedder producing up
// to rows per-token dense vectors, stand-in for ColBERT-style late
// interaction.
func NewSlicingMultiVectorEmbedder(dense DenseEmbedder, rows int) MultiVectorEmbedder {
	if rows <= 0 {
		rows = 32
	}
	return &slicingMultiVectorEmbedder{dense: dense, rows: rows}
}

func (e *slicingMultiVectorEmbedder) EmbedQuery(ctx context.Context, text string) ([][]float32, error) {
	return e.rowsFor(ctx, text)
}

func (e *slicingMultiVectorEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][][]float32, error) {
	out := make([][][]float32, len(texts))
	for i, t := range texts {
		rows, err := e.rowsFor(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = rows
	}
	return out, nil
}

func (e *slicingMultiVectorEmbedder) Close() error { return e.dense.Close() }

func (e *slicingMultiVectorEmbedder) rowsFor(ctx context.Context, text string) ([][]float32, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		whole, err := e.dense.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return [][]float32{whole}, nil
	}
	if len(tokens) > e.rows {
		tokens = tokens[:e.rows]
	}

	rows := make([][]float32, 0, len(tokens))
	for i, tok := range tokens {
		// Include position so repeated tokens still yield distinguishable
		// rows, matching a real late-interaction model's context sensitivity.
		vec, err := e.dense.EmbedQuery(ctx, tok+"#"+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		rows = append(rows, vec)
	}
	return rows, nil
}
