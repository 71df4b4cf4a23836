package ratelimit

import (
	"context"
	"sync"
	"time"

	"stockwatch/internal/provider"
)

// Limiter blocks until the next upstream call may start.
type Limiter interface {
	Wait(ctx context.Context) error
}

// MinInterval enforces a minimum time between the starts of consecutive calls.
// Concurrent callers queue behind each other, or return early if the context is canceled.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return ctx.Err()
	}
	// reserve a slot, then sleep until it comes up
	m.mu.Lock()
	now := time.Now()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Quotes gates every Quote call of the wrapped source.
type Quotes struct {
	Source  provider.QuoteSource
	Limiter Limiter
}

func (q *Quotes) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	if q.Limiter != nil {
		if err := q.Limiter.Wait(ctx); err != nil {
			return provider.Quote{}, err
		}
	}
	return q.Source.Quote(ctx, symbol)
}

// Histories gates every History call of the wrapped source.
type Histories struct {
	Source  provider.HistorySource
	Limiter Limiter
}

func (h *Histories) History(ctx context.Context, symbol string) ([]provider.HistoricalRecord, error) {
	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return h.Source.History(ctx, symbol)
}

// FromConfig picks a limiter: a token bucket when perMinute is set,
// otherwise a fixed interval, otherwise nil (no limiting).
func FromConfig(perMinute, burst int, interval time.Duration) Limiter {
	switch {
	case perMinute > 0:
		if burst <= 0 {
			burst = 1
		}
		return NewTokenBucket(float64(perMinute)/60.0, burst)
	case interval > 0:
		return &MinInterval{Interval: interval}
	default:
		return nil
	}
}
