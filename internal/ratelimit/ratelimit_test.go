package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquire_BurstThenThrottle(t *testing.T) {
	// 50 tokens/sec, capacity 5. The first 5 acquires are free (full
	// bucket); the next 5 must wait for refill, at least 5/50 = 100ms total.
	tb := newBucket(50, 5)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := tb.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 90*time.Millisecond {
		t.Errorf("10 acquires on a 5-capacity bucket took %v, expected >= ~100ms", elapsed)
	}
}

func TestAcquire_NeverExceedsCapacity(t *testing.T) {
	tb := newBucket(1000, 2)
	// Let refill run well past capacity.
	time.Sleep(20 * time.Millisecond)

	tb.mu.Lock()
	now := time.Now()
	tb.tokens += now.Sub(tb.last).Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	capped := tb.tokens <= tb.capacity
	tb.mu.Unlock()

	if !capped {
		t.Error("tokens exceeded capacity after idle refill")
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	tb := newBucket(0.1, 1) // one token, then a 10s wait for the next
	if err := tb.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tb.Acquire(ctx); err == nil {
		t.Error("expected context error from blocked acquire")
	}
}

func TestAcquire_ConcurrentCallers(t *testing.T) {
	tb := newBucket(200, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tb.Acquire(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent acquire: %v", err)
		}
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.tokens < 0 {
		t.Errorf("tokens went negative: %f", tb.tokens)
	}
}
