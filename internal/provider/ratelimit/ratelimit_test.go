package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"stockwatch/internal/provider"
	"stockwatch/internal/provider/ratelimit"
)

type countingSource struct{ calls atomic.Int32 }

func (c *countingSource) Quote(_ context.Context, symbol string) (provider.Quote, error) {
	c.calls.Add(1)
	return provider.Quote{Symbol: symbol}, nil
}

func (c *countingSource) History(_ context.Context, symbol string) ([]provider.HistoricalRecord, error) {
	c.calls.Add(1)
	return []provider.HistoricalRecord{{Date: "2024-01-01"}}, nil
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	q := &ratelimit.Quotes{Source: src, Limiter: &ratelimit.MinInterval{Interval: 30 * time.Millisecond}}

	start := time.Now()
	for _, s := range []string{"A", "B", "C"} {
		_, err := q.Quote(t.Context(), s)
		require.NoError(t, err)
	}

	// first call is immediate, the next two wait one interval each
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	require.EqualValues(t, 3, src.calls.Load())
}

func TestMinInterval_CanceledContext(t *testing.T) {
	t.Parallel()

	lim := &ratelimit.MinInterval{Interval: time.Hour}
	require.NoError(t, lim.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, lim.Wait(ctx), context.Canceled)
}

func TestHistories_CanceledContextSkipsSource(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	h := &ratelimit.Histories{Source: src, Limiter: &ratelimit.MinInterval{Interval: time.Hour}}

	_, err := h.History(t.Context(), "A")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = h.History(ctx, "B")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualValues(t, 1, src.calls.Load())
}

func TestTokenBucket_Burst(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(1000, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, tb.Wait(t.Context()))
	}

	slow := ratelimit.NewTokenBucket(0.001, 1)
	require.NoError(t, slow.Wait(t.Context()))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, slow.Wait(ctx))
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	t.Parallel()

	// Arrange: 20 tokens per second, one at a time, in front of a source
	src := &countingSource{}
	q := &ratelimit.Quotes{Source: src, Limiter: ratelimit.NewTokenBucket(20, 1)}

	// Act: the first call spends the initial token, the rest wait ~50ms each
	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := q.Quote(t.Context(), "AAPL")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// Assert
	require.EqualValues(t, 4, src.calls.Load())
	require.GreaterOrEqual(t, elapsed, 140*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}

func TestTokenBucket_IdleRefillCappedAtBurst(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	q := &ratelimit.Quotes{Source: src, Limiter: ratelimit.NewTokenBucket(20, 2)}

	// idle long enough for many tokens; only two may accumulate
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := q.Quote(t.Context(), "AAPL")
		require.NoError(t, err)
	}
	require.Less(t, time.Since(start), 30*time.Millisecond)

	_, err := q.Quote(t.Context(), "AAPL")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestTokenBucket_CanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	q := &ratelimit.Quotes{Source: src, Limiter: ratelimit.NewTokenBucket(0.5, 1)}
	_, err := q.Quote(t.Context(), "AAPL")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Quote(ctx, "AAPL")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualValues(t, 1, src.calls.Load())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	require.IsType(t, &ratelimit.TokenBucket{}, ratelimit.FromConfig(60, 0, time.Second))
	require.IsType(t, &ratelimit.MinInterval{}, ratelimit.FromConfig(0, 0, time.Second))
	require.Nil(t, ratelimit.FromConfig(0, 0, 0))
}
