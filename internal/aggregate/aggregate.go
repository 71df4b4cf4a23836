package aggregate

import (
	"context"
	"errors"
	"log"

	"stockwatch/internal/provider"
)

// ErrNoData is reported when not a single quote could be fetched.
var ErrNoData = errors.New("no data could be fetched")

// Result is the outcome of one batch. Quotes keeps request order; symbols
// whose fetch failed are simply absent. Error is set only when Quotes is empty.
type Result struct {
	Quotes []provider.Quote `json:"quotes"`
	Error  string           `json:"error,omitempty"`

	err error
}

// Err returns the error behind Error: ErrNoData or the context's error.
func (r Result) Err() error { return r.err }

// Aggregator turns a list of symbols into quotes, tolerating per-symbol failure.
//
//go:generate mockgen -package=aggregate_test -destination=mock_quote_source_test.go stockwatch/internal/provider QuoteSource
type Aggregator struct {
	Source provider.QuoteSource
}

func New(src provider.QuoteSource) *Aggregator { return &Aggregator{Source: src} }

// FetchAll calls the source once per symbol, strictly one after another.
// The calls are never fanned out: the upstream source sees at most one
// request from a batch at a time.
func (a *Aggregator) FetchAll(ctx context.Context, symbols []string) Result {
	quotes := make([]provider.Quote, 0, len(symbols))
	var canceled error

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			canceled = err
			break
		}
		q, err := a.Source.Quote(ctx, sym)
		if err != nil {
			log.Printf("aggregate: fetch %s: %v", sym, err)
			continue
		}
		quotes = append(quotes, q)
	}

	if len(quotes) > 0 {
		return Result{Quotes: quotes}
	}
	if canceled != nil {
		return Result{Quotes: quotes, Error: canceled.Error(), err: canceled}
	}
	return Result{Quotes: quotes, Error: ErrNoData.Error(), err: ErrNoData}
}
