package coalesce

import (
	"context"

	"golang.org/x/sync/singleflight"

	"stockwatch/internal/provider"
)

// Histories collapses concurrent loads of the same symbol into one upstream
// call. Nothing is kept once the call returns, so every new request still
// reads fresh data.
type Histories struct {
	Source provider.HistorySource

	sf singleflight.Group
}

func (h *Histories) History(ctx context.Context, symbol string) ([]provider.HistoricalRecord, error) {
	key := provider.NormalizeSymbol(symbol)
	// the shared load must not fail because the caller that started it gave up
	ch := h.sf.DoChan(key, func() (any, error) {
		return h.Source.History(context.WithoutCancel(ctx), key)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared := res.Val.([]provider.HistoricalRecord)
	// callers may hold on to the slice; never hand out the shared backing array
	out := make([]provider.HistoricalRecord, len(shared))
	copy(out, shared)
	return out, nil
}
