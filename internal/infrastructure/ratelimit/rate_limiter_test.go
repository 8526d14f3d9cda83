package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	bucket := NewTokenBucket(2, 1, 20*time.Millisecond)

	ok, _ := bucket.Allow()
	assert.True(t, ok)
	ok, _ = bucket.Allow()
	assert.True(t, ok)

	ok, wait := bucket.Allow()
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	time.Sleep(30 * time.Millisecond)
	ok, _ = bucket.Allow()
	assert.True(t, ok)
}

func TestRateLimiter_KeysAndActionsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)

	ok, _ := rl.Allow("conn-1", ActionEvent)
	assert.True(t, ok)
	ok, _ = rl.Allow("conn-1", ActionEvent)
	assert.False(t, ok)

	ok, _ = rl.Allow("conn-2", ActionEvent)
	assert.True(t, ok)

	ok, _ = rl.Allow("conn-1", ActionSupportRequest)
	assert.True(t, ok)
}

func TestRateLimiter_SupportRequestBurst(t *testing.T) {
	rl := NewRateLimiter(100, time.Second)

	for i := 0; i < 5; i++ {
		ok, _ := rl.Allow("u1", ActionSupportRequest)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, wait := rl.Allow("u1", ActionSupportRequest)
	assert.False(t, ok)
	assert.LessOrEqual(t, wait, 2*time.Minute)
}

func TestRateLimiter_ForgetAndCleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)

	rl.Allow("conn-1", ActionEvent)
	rl.Forget("conn-1")
	ok, _ := rl.Allow("conn-1", ActionEvent)
	assert.True(t, ok, "a forgotten key starts with a full bucket")

	rl.Allow("conn-2", ActionEvent)
	time.Sleep(5 * time.Millisecond)
	rl.Cleanup(time.Millisecond)
	assert.Empty(t, rl.buckets)
}
