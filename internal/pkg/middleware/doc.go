// Package middleware provides per-tenant ingestion throttling.
//
// Available components:
//   - RateLimiter: per-tenant rate limiting using a token bucket, applied on
//     the event consumer's enqueue path before a turn reaches the batch queue.
//
// Usage:
//
//	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
//	if err := rl.Wait(ctx, tenantID); err != nil {
//		// ctx ended before a token was available; the turn is not enqueued
//	}
package middleware
