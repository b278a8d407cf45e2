package qdrant

import (
	"context"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
)

// CreateCollection creates a new collection per cfg's schema, idempotently.
func (c *Client) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	name := collectionName(cfg.Name)

	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return classifyStoreError("checking collection existence", err)
	}
	if exists {
		return nil
	}

	vectorsConfig := make(map[string]*qdrant.VectorParams, len(cfg.DenseVectors))
	for field, size := range cfg.DenseVectors {
		vectorsConfig[field] = &qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
			OnDisk:   qdrant.PtrOf(false),
		}
	}
	for field, size := range cfg.MultiVectors {
		vectorsConfig[field] = &qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
			OnDisk:   qdrant.PtrOf(false),
			MultivectorConfig: &qdrant.MultiVectorConfig{
				Comparator: qdrant.MultiVectorComparator_MaxSim,
			},
		}
	}

	create := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfigMap(vectorsConfig),
		OnDiskPayload:  qdrant.PtrOf(cfg.OnDiskPayload),
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(cfg.IndexingThreshold),
			MemmapThreshold:   qdrant.PtrOf(cfg.MemmapThreshold),
		},
	}

	if len(cfg.SparseVectors) > 0 {
		sparseMap := make(map[string]*qdrant.SparseVectorParams, len(cfg.SparseVectors))
		for _, field := range cfg.SparseVectors {
			sparseMap[field] = &qdrant.SparseVectorParams{
				Index: &qdrant.SparseIndexConfig{
					OnDisk:            qdrant.PtrOf(false),
					FullScanThreshold: qdrant.PtrOf(uint64(10000)),
				},
			}
		}
		create.SparseVectorsConfig = &qdrant.SparseVectorConfig{Map: sparseMap}
	}

	if err := c.client.CreateCollection(ctx, create); err != nil {
		return classifyStoreError("creating collection "+name, err)
	}

	if err := c.createPayloadIndexes(ctx, name, cfg.PayloadIndices); err != nil {
		return classifyStoreError("creating payload indexes for "+name, err)
	}

	return nil
}

// createPayloadIndexes creates indexes on payload fields for efficient filtering.
func (c *Client) createPayloadIndexes(ctx context.Context, collectionName string, indices []PayloadIndex) error {
	for _, idx := range indices {
		var fieldType qdrant.FieldType
		switch idx.Kind {
		case PayloadIndexInteger:
			fieldType = qdrant.FieldType_FieldTypeInteger
		case PayloadIndexText:
			fieldType = qdrant.FieldType_FieldTypeText
		default:
			fieldType = qdrant.FieldType_FieldTypeKeyword
		}

		_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collectionName,
			FieldName:      idx.Field,
			FieldType:      qdrant.PtrOf(fieldType),
		})
		if err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return err
			}
		}
	}

	return nil
}

// DeleteCollection deletes a collection.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.client.DeleteCollection(ctx, collectionName(name)); err != nil {
		return classifyStoreError("deleting collection "+name, err)
	}

	return nil
}

// ListCollections returns all retrieval-core collections (without prefix).
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	collections, err := c.client.ListCollections(ctx)
	if err != nil {
		return nil, classifyStoreError("listing collections", err)
	}

	var result []string
	for _, col := range collections {
		if strings.HasPrefix(col, CollectionPrefix) {
			result = append(result, strings.TrimPrefix(col, CollectionPrefix))
		}
	}

	return result, nil
}

// GetCollectionInfo returns information about a collection.
func (c *Client) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	info, err := c.client.GetCollectionInfo(ctx, collectionName(name))
	if err != nil {
		return nil, classifyStoreError("getting collection info for "+name, err)
	}

	statusStr := "unknown"
	switch info.Status {
	case qdrant.CollectionStatus_Green:
		statusStr = "green"
	case qdrant.CollectionStatus_Yellow:
		statusStr = "yellow"
	case qdrant.CollectionStatus_Red:
		statusStr = "red"
	}

	var pointsCount uint64
	if info.PointsCount != nil {
		pointsCount = *info.PointsCount
	}

	return &CollectionInfo{
		Name:          name,
		PointsCount:   pointsCount,
		Status:        statusStr,
		SegmentsCount: uint64(info.SegmentsCount),
	}, nil
}

// CollectionExists checks if a collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false, apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	return c.collectionExists(ctx, collectionName(name))
}

// collectionExists is the internal helper (expects full collection name).
func (c *Client) collectionExists(ctx context.Context, fullName string) (bool, error) {
	collections, err := c.client.ListCollections(ctx)
	if err != nil {
		return false, err
	}

	for _, col := range collections {
		if col == fullName {
			return true, nil
		}
	}

	return false, nil
}
