package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	ActionEvent          = "event"
	ActionSupportRequest = "support_request"
)

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	lastUsed   time.Time
	mutex      sync.Mutex
}

// Limit describes one bucket shape.
type Limit struct {
	Burst      int
	RefillRate int
	RefillTime time.Duration
}

// RateLimiter keeps one bucket per (key, action).
type RateLimiter struct {
	buckets map[string]*TokenBucket
	limits  map[string]Limit
	mutex   sync.RWMutex
}

// NewRateLimiter creates a limiter whose generic event bucket has the given
// burst and refill interval.
func NewRateLimiter(eventBurst int, eventRefill time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		limits: map[string]Limit{
			ActionEvent: {Burst: eventBurst, RefillRate: 1, RefillTime: eventRefill},
			// 5 help requests, then one more every two minutes
			ActionSupportRequest: {Burst: 5, RefillRate: 1, RefillTime: 2 * time.Minute},
		},
	}
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: now,
		lastUsed:   now,
	}
}

// Allow checks if an action is allowed and consumes a token if so
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	tb.lastUsed = now

	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed/tb.refillTime) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd/tb.refillRate) * tb.refillTime)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

// Allow checks if an action is allowed for key.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	bucketKey := key + ":" + action

	rl.mutex.RLock()
	bucket, exists := rl.buckets[bucketKey]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[bucketKey]; !exists {
			limit, ok := rl.limits[action]
			if !ok {
				limit = rl.limits[ActionEvent]
			}
			bucket = NewTokenBucket(limit.Burst, limit.RefillRate, limit.RefillTime)
			rl.buckets[bucketKey] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.Allow()
}

// Forget drops every bucket held for key.
func (rl *RateLimiter) Forget(key string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	prefix := key + ":"
	for bucketKey := range rl.buckets {
		if strings.HasPrefix(bucketKey, prefix) {
			delete(rl.buckets, bucketKey)
		}
	}
}

// Cleanup removes buckets that have not been used for maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastUsed)
		bucket.mutex.Unlock()
		if idle > maxIdle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()
}
