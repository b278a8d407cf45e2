package middleware

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.RequestsPerSecond != 200 {
		t.Errorf("expected RequestsPerSecond=200, got %f", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 400 {
		t.Errorf("expected Burst=400, got %d", cfg.Burst)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Errorf("expected CleanupInterval=1m, got %v", cfg.CleanupInterval)
	}
}

func TestNewRateLimiter(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   10 * time.Second,
	}

	rl := NewRateLimiter(cfg)

	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if rl.rate != 10 {
		t.Errorf("expected rate=10, got %f", rl.rate)
	}
	if rl.burst != 20 {
		t.Errorf("expected burst=20, got %d", rl.burst)
	}
	if len(rl.clients) != 0 {
		t.Errorf("expected empty clients map, got %d entries", len(rl.clients))
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 2,
		Burst:             2,
		CleanupInterval:   time.Minute,
	}

	rl := NewRateLimiter(cfg)

	tenantID := "tenant-a"

	// First 2 turns should be allowed (burst)
	if !rl.Allow(tenantID) {
		t.Error("expected first turn to be allowed")
	}
	if !rl.Allow(tenantID) {
		t.Error("expected second turn to be allowed")
	}

	// Third turn should be denied (burst exhausted)
	if rl.Allow(tenantID) {
		t.Error("expected third turn to be denied")
	}

	// Wait for rate limit to refill
	time.Sleep(600 * time.Millisecond)

	// Should allow one more turn now
	if !rl.Allow(tenantID) {
		t.Error("expected turn to be allowed after waiting")
	}
}

func TestRateLimiter_WaitBlocksThenAdmits(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             1,
		CleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(cfg)
	tenantID := "tenant-a"

	if !rl.Allow(tenantID) {
		t.Fatal("expected first turn to be allowed")
	}

	start := time.Now()
	if err := rl.Wait(context.Background(), tenantID); err != nil {
		t.Fatalf("unexpected error from Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed <= 0 {
		t.Error("expected Wait to block for at least some time before admitting")
	}
}

func TestRateLimiter_WaitRespectsContextCancellation(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 0.1,
		Burst:             1,
		CleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(cfg)
	tenantID := "tenant-a"

	if !rl.Allow(tenantID) {
		t.Fatal("expected first turn to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, tenantID); err == nil {
		t.Fatal("expected Wait to return an error once the context deadline passes")
	}
}

func TestRateLimiter_MultipleTenants(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		CleanupInterval:   time.Minute,
	}

	rl := NewRateLimiter(cfg)

	tenant1 := "tenant-a"
	tenant2 := "tenant-b"

	// Both tenants should have independent limits
	for i := 0; i < 5; i++ {
		if !rl.Allow(tenant1) {
			t.Errorf("tenant1 turn %d should be allowed", i)
		}
		if !rl.Allow(tenant2) {
			t.Errorf("tenant2 turn %d should be allowed", i)
		}
	}

	// Both should be rate limited now
	if rl.Allow(tenant1) {
		t.Error("tenant1 should be rate limited")
	}
	if rl.Allow(tenant2) {
		t.Error("tenant2 should be rate limited")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             100,
		CleanupInterval:   time.Minute,
	}

	rl := NewRateLimiter(cfg)

	var wg sync.WaitGroup
	numGoroutines := 10
	turnsPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(tenantNum int) {
			defer wg.Done()
			tenantID := "tenant-" + string(rune('0'+tenantNum))
			for j := 0; j < turnsPerGoroutine; j++ {
				rl.Allow(tenantID)
			}
		}(i)
	}

	wg.Wait()

	// Just verify no panics occurred
	t.Log("Concurrent access test passed")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	cfg := RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             100,
		CleanupInterval:   100 * time.Millisecond,
	}

	rl := NewRateLimiter(cfg)

	// Create entries for multiple tenants
	for i := 0; i < 5; i++ {
		tenantID := "tenant-" + string(rune('0'+i))
		rl.Allow(tenantID)
	}

	// Verify they exist
	rl.mu.RLock()
	initialCount := len(rl.clients)
	rl.mu.RUnlock()

	if initialCount != 5 {
		t.Errorf("expected 5 tenants, got %d", initialCount)
	}

	// Wait for cleanup to run (5 minute threshold + cleanup interval)
	// Since the threshold is 5 minutes in production, we can't easily test this
	// without mocking time. Just verify the cleanup mechanism is set up.
	time.Sleep(200 * time.Millisecond)

	// Entries should still exist (not old enough)
	rl.mu.RLock()
	afterCleanup := len(rl.clients)
	rl.mu.RUnlock()

	if afterCleanup != 5 {
		t.Errorf("expected 5 tenants after cleanup (not old enough), got %d", afterCleanup)
	}
}
