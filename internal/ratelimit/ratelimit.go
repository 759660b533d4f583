package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket throttles outbound calls to a fixed number per minute.
// Tokens refill continuously at capacity/60 per second, capped at capacity.
// Safe for concurrent callers; the refill-and-consume sequence is one
// critical section per Acquire.
type TokenBucket struct {
	rate     float64 // tokens per second
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// New creates a bucket allowing callsPerMinute calls per minute.
// The bucket starts full so an initial burst is allowed.
func New(callsPerMinute int) *TokenBucket {
	if callsPerMinute < 1 {
		callsPerMinute = 1
	}
	return newBucket(float64(callsPerMinute)/60.0, float64(callsPerMinute))
}

func newBucket(tokensPerSecond, capacity float64) *TokenBucket {
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: capacity,
		tokens:   capacity,
		last:     time.Now(),
	}
}

// Acquire blocks until one token is available, then consumes it.
// Returns early only if ctx is cancelled while waiting.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		// Time needed to accumulate one token. Re-check after waking:
		// another caller may have taken it.
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
