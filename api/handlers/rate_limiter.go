package handlers

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket per provider. Providers retry aggressively
// during outages; the bucket absorbs bursts while capping sustained rate.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter builds a limiter allowing bursts of capacity requests and
// a sustained refillRate requests per second per provider.
func NewRateLimiter(capacity, refillRate float64) *RateLimiter {
	if capacity <= 0 {
		capacity = 100
	}
	if refillRate <= 0 {
		refillRate = 50
	}
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// AllowRequest takes one token for the provider, refilling by elapsed time.
func (rl *RateLimiter) AllowRequest(provider string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[provider]
	if !exists {
		b = &bucket{
			tokens:     rl.capacity,
			lastRefill: now,
		}
		rl.buckets[provider] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * rl.refillRate
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}
