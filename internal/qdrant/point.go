package qdrant

import (
	"context"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
)

// Upsert inserts or updates points in a collection (§4.2 operation 1).
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.StoreUnavailableError("client is closed", nil)
	}

	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, pointToQdrant(p))
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(collection),
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return classifyStoreError("upserting points into "+collection, err)
	}

	return nil
}

// DeletePoints deletes points by ID.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.StoreUnavailableError("client is closed", nil)
	}

	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(collection),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return classifyStoreError("deleting points from "+collection, err)
	}

	return nil
}

// pointToQdrant converts a Point to a Qdrant PointStruct, wiring whichever
// named dense, sparse and multi-vector fields are present.
func pointToQdrant(p Point) *qdrant.PointStruct {
	namedVectors := make(map[string]*qdrant.Vector, len(p.DenseVectors)+len(p.SparseVectors)+len(p.MultiVectors))

	for field, vec := range p.DenseVectors {
		namedVectors[field] = &qdrant.Vector{Data: vec}
	}
	for field, sv := range p.SparseVectors {
		namedVectors[field] = &qdrant.Vector{
			Data:    sv.Values,
			Indices: &qdrant.SparseIndices{Data: sv.Indices},
		}
	}
	for field, rows := range p.MultiVectors {
		flat := make([]float32, 0)
		for _, row := range rows {
			flat = append(flat, row...)
		}
		vectorsPerRow := uint32(0)
		if len(rows) > 0 {
			vectorsPerRow = uint32(len(rows[0]))
		}
		namedVectors[field] = &qdrant.Vector{
			Data:         flat,
			VectorsCount: qdrant.PtrOf(vectorsPerRow),
		}
	}

	vectors := &qdrant.Vectors{
		VectorsOptions: &qdrant.Vectors_Vectors{
			Vectors: &qdrant.NamedVectors{Vectors: namedVectors},
		},
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: vectors,
		Payload: qdrant.NewValueMap(p.Payload),
	}
}
