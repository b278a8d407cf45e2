package qdrant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
)

const (
	// CollectionPrefix is prepended to all collection names.
	CollectionPrefix = "turnsearch_"

	// DefaultHost is the default vector store host.
	DefaultHost = "localhost"

	// DefaultPort is the default vector store gRPC port.
	DefaultPort = 6334

	// DefaultTimeout is the default operation timeout.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration for the vector-store client.
type ClientConfig struct {
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool
	Timeout time.Duration
}

// DefaultClientConfig returns sensible defaults for local development.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Client wraps the Qdrant Go client with the four operations the retrieval
// core requires: upsert, query, query_sparse, fuse (§4.2).
type Client struct {
	client *qdrant.Client
	config ClientConfig
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new vector-store client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailableError("failed to create vector store client", err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.client.Close()
}

// HealthCheck verifies the vector store is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.StoreUnavailableError("client is closed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reply, err := c.client.HealthCheck(ctx)
	if err != nil {
		return apperrors.StoreUnavailableError("health check failed", err)
	}

	if reply.GetTitle() == "" {
		return apperrors.StoreUnavailableError("unexpected health check response", nil)
	}

	return nil
}

// collectionName returns the full collection name with prefix.
func collectionName(name string) string {
	return CollectionPrefix + name
}

// classifyStoreError maps a raw client error onto StoreUnavailable (transport
// or timeout) or StoreRejected (structural/request error), per §4.2.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "transport"):
		return apperrors.StoreUnavailableError(op, err)
	default:
		return apperrors.StoreRejectedError(op, err)
	}
}
