// Package middleware provides per-tenant throttling for the ingestion path.
package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-tenant token-bucket throttling on the event
// consumer's enqueue path. A tenant producing turns faster than its bucket
// allows is backpressured (Wait blocks until a token is available) rather
// than having valid turns dropped; no message is ever discarded for rate
// reasons alone.
type RateLimiter struct {
	mu       sync.RWMutex
	clients  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	lastSeen map[string]time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the rate limit per tenant.
	RequestsPerSecond float64
	// Burst is the maximum burst size.
	Burst int
	// CleanupInterval is how often to clean up stale tenants.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 200,         // turns/sec per tenant
		Burst:             400,         // allow bursts up to 400
		CleanupInterval:   time.Minute, // clean up every minute
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
		lastSeen: make(map[string]time.Time),
	}

	go rl.cleanupLoop()

	return rl
}

// getLimiter returns the rate limiter for a tenant, creating one if needed.
func (rl *RateLimiter) getLimiter(tenantID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSeen[tenantID] = time.Now()

	limiter, exists := rl.clients[tenantID]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.clients[tenantID] = limiter
	}

	return limiter
}

// cleanupLoop removes stale tenant entries.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		threshold := time.Now().Add(-5 * time.Minute)
		for tenantID, lastSeen := range rl.lastSeen {
			if lastSeen.Before(threshold) {
				delete(rl.clients, tenantID)
				delete(rl.lastSeen, tenantID)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a turn from the given tenant may be enqueued now.
func (rl *RateLimiter) Allow(tenantID string) bool {
	return rl.getLimiter(tenantID).Allow()
}

// Wait blocks until a turn from the given tenant may be enqueued, or until
// ctx is done. It never causes a valid message to be dropped; it only
// delays admission to keep a bursty tenant from starving the batch queue.
func (rl *RateLimiter) Wait(ctx context.Context, tenantID string) error {
	return rl.getLimiter(tenantID).Wait(ctx)
}
