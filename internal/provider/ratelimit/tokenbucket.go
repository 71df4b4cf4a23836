package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// TokenBucket allows bursts of up to burst calls, refilled at a steady rate.
// It starts full.
type TokenBucket struct {
	perToken time.Duration
	burst    float64

	mu     sync.Mutex
	tokens float64
	filled time.Time
}

// NewTokenBucket returns a bucket refilling tokensPerSecond tokens per second.
// A non-positive rate is treated as one token per day.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	perToken := 24 * time.Hour
	if tokensPerSecond > 0 {
		perToken = time.Duration(float64(time.Second) / tokensPerSecond)
	}
	b := float64(max(burst, 1))
	return &TokenBucket{perToken: perToken, burst: b, tokens: b, filled: time.Now()}
}

// Wait takes one token, sleeping until one is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait := tb.take(time.Now())
		if wait == 0 {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// take refills for the time elapsed since the last call and consumes a token.
// When the bucket is empty it returns how long until the next token.
func (tb *TokenBucket) take(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.filled); elapsed > 0 {
		tb.tokens = math.Min(tb.burst, tb.tokens+float64(elapsed)/float64(tb.perToken))
		tb.filled = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	wait := time.Duration((1 - tb.tokens) * float64(tb.perToken))
	return max(wait, time.Millisecond)
}
