package embed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turnsearch/turnsearch/internal/pkg/hash"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// CacheMetrics is the interface for recording cache metrics, decoupling the
// cache from whatever metrics package a deployment wires in.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

// EmbeddingCache caches dense embeddings by text hash, in-process with an
// optional Redis-backed second tier for cross-process/restart persistence.
type EmbeddingCache struct {
	mu      sync.RWMutex
	cache   map[string][]float32
	maxSize int
	order   []string // LRU order, oldest first
	metrics CacheMetrics

	redisClient *redis.Client
	redisPrefix string
	log         *logger.Logger
}

// NewEmbeddingCache creates an in-process embedding cache of maxSize entries.
func NewEmbeddingCache(maxSize int) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &EmbeddingCache{
		cache:   make(map[string][]float32),
		maxSize: maxSize,
		order:   make([]string, 0, maxSize),
	}
}

// SetMetrics injects a metrics recorder after construction.
func (c *EmbeddingCache) SetMetrics(metrics CacheMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// SetRedis attaches a second-tier Redis cache, keyed under prefix, used when
// an entry misses the in-process tier. Passing redisURL="" leaves this tier
// disabled entirely.
func (c *EmbeddingCache) SetRedis(redisURL, prefix string, log *logger.Logger) error {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.redisClient = redis.NewClient(opts)
	c.redisPrefix = prefix
	c.log = log
	c.mu.Unlock()

	return nil
}

// Get retrieves an embedding, checking the in-process tier first and, when
// configured, falling back to Redis before reporting a miss.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := hash.SHA256String(text)

	c.mu.RLock()
	emb, ok := c.cache[key]
	redisClient := c.redisClient
	redisPrefix := c.redisPrefix
	c.mu.RUnlock()

	if ok {
		c.recordHit()
		c.mu.Lock()
		c.moveToEnd(key)
		c.mu.Unlock()
		return cloneVec(emb), true
	}

	if redisClient != nil {
		if vec, found := c.getFromRedis(redisClient, redisPrefix, key); found {
			c.recordHit()
			c.setLocal(key, vec)
			return vec, true
		}
	}

	c.recordMiss()
	return nil, false
}

// Set stores an embedding in the in-process tier and, when configured,
// writes it through to Redis best-effort (a Redis failure never fails Set).
func (c *EmbeddingCache) Set(text string, embedding []float32) {
	key := hash.SHA256String(text)
	c.setLocal(key, embedding)

	c.mu.RLock()
	redisClient := c.redisClient
	redisPrefix := c.redisPrefix
	log := c.log
	c.mu.RUnlock()

	if redisClient != nil {
		c.setToRedis(redisClient, redisPrefix, key, embedding, log)
	}
}

func (c *EmbeddingCache) setLocal(key string, embedding []float32) {
	embCopy := cloneVec(embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; exists {
		c.cache[key] = embCopy
		c.moveToEnd(key)
		return
	}

	for len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = embCopy
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize("embed", len(c.cache))
	}
}

func (c *EmbeddingCache) getFromRedis(client *redis.Client, prefix, key string) ([]float32, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := client.Get(ctx, prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) setToRedis(client *redis.Client, prefix, key string, vec []float32, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}

	if err := client.Set(ctx, prefix+key, data, 24*time.Hour).Err(); err != nil && log != nil {
		log.Warn("embed cache redis write failed", "error", err)
	}
}

func (c *EmbeddingCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

func (c *EmbeddingCache) recordHit() {
	c.mu.RLock()
	m := c.metrics
	c.mu.RUnlock()
	if m != nil {
		m.RecordCacheHit("embed")
	}
}

func (c *EmbeddingCache) recordMiss() {
	c.mu.RLock()
	m := c.metrics
	c.mu.RUnlock()
	if m != nil {
		m.RecordCacheMiss("embed")
	}
}

// Size returns the in-process entry count.
func (c *EmbeddingCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear empties the in-process tier; the Redis tier, if any, is untouched.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]float32)
	c.order = make([]string, 0, c.maxSize)
	if c.metrics != nil {
		c.metrics.UpdateCacheSize("embed", 0)
	}
}

// Stats returns cache statistics.
func (c *EmbeddingCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Size: len(c.cache), MaxSize: c.maxSize}
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"max_size"`
}

// Close releases the Redis connection, if any.
func (c *EmbeddingCache) Close() error {
	c.mu.RLock()
	client := c.redisClient
	c.mu.RUnlock()
	if client != nil {
		return client.Close()
	}
	return nil
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
