package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds shared by every source, store and consumer.
// Match them with errors.Is; implementations wrap them with context.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrPersistence       = errors.New("persistence failure")
)

// Quote is a point-in-time price snapshot for one symbol.
// Change and ChangePercent are derived from two consecutive closes.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	LastUpdated   string  `json:"lastUpdated"`
}

// HistoricalRecord is one daily OHLCV bar.
type HistoricalRecord struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// QuoteSource returns the latest quote for a symbol.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// HistorySource returns the daily series for a symbol, ascending by date.
type HistorySource interface {
	History(ctx context.Context, symbol string) ([]HistoricalRecord, error)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// QuoteFromHistory derives a quote from the two most recent records of an
// ascending series.
func QuoteFromHistory(symbol string, series []HistoricalRecord) (Quote, error) {
	if len(series) < 2 {
		return Quote{}, fmt.Errorf("%s: need at least two records, have %d: %w", symbol, len(series), ErrNotFound)
	}
	last := series[len(series)-1]
	prev := series[len(series)-2]

	change := last.Close - prev.Close
	var pct float64
	if prev.Close != 0 {
		pct = change / prev.Close * 100
	}
	return Quote{
		Symbol:        symbol,
		Price:         last.Close,
		Change:        change,
		ChangePercent: pct,
		LastUpdated:   last.Date,
	}, nil
}

// HistoryQuotes turns any HistorySource into a QuoteSource.
type HistoryQuotes struct {
	History HistorySource
}

func (h HistoryQuotes) Quote(ctx context.Context, symbol string) (Quote, error) {
	series, err := h.History.History(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	return QuoteFromHistory(symbol, series)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate accepts plain dates and the ISO timestamps written by dataset
// exporters. Results are in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidInput)
}
