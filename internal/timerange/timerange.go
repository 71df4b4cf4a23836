// Package timerange slices a daily series to a named lookback window and
// derives the change over the visible slice.
package timerange

import (
	"fmt"
	"strings"
	"time"

	"stockwatch/internal/provider"
)

// Range is a named lookback window.
type Range string

const (
	ThreeMonths Range = "3M"
	OneYear     Range = "1Y"
	ThreeYears  Range = "3Y"
	All         Range = "ALL"
)

// Ranges lists the selectable ranges in display order.
var Ranges = []Range{ThreeMonths, OneYear, ThreeYears, All}

// allDays is large enough to cover any realistic history.
const allDays = 365 * 100

// Parse accepts a range name in any letter case.
func Parse(s string) (Range, error) {
	switch r := Range(strings.ToUpper(strings.TrimSpace(s))); r {
	case ThreeMonths, OneYear, ThreeYears, All:
		return r, nil
	default:
		return "", fmt.Errorf("unknown time range %q: %w", s, provider.ErrInvalidInput)
	}
}

// LookbackDays returns the window length in days.
func (r Range) LookbackDays() int {
	switch r {
	case ThreeMonths:
		return 90
	case OneYear:
		return 365
	case ThreeYears:
		return 365 * 3
	default:
		return allDays
	}
}

func (r Range) String() string { return string(r) }

// Start returns the first instant included by r relative to now.
func (r Range) Start(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.LookbackDays())
}

// Filter returns the records dated on or after now minus the lookback,
// in their original order. The input is never modified.
// Records whose date cannot be parsed are dropped from bounded ranges.
func Filter(series []provider.HistoricalRecord, r Range, now time.Time) []provider.HistoricalRecord {
	if r == All {
		out := make([]provider.HistoricalRecord, len(series))
		copy(out, series)
		return out
	}
	start := r.Start(now)
	out := make([]provider.HistoricalRecord, 0, len(series))
	for _, rec := range series {
		d, err := provider.ParseDate(rec.Date)
		if err != nil || d.Before(start) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Metrics is the change across a filtered slice, first open to last close.
type Metrics struct {
	Change        float64 `json:"rangeChange"`
	ChangePercent float64 `json:"rangeChangePercent"`
	// Available is false when the slice is empty or starts at a zero open.
	Available bool `json:"metricsAvailable"`
}

// Compute derives the range metrics of an already filtered slice.
func Compute(filtered []provider.HistoricalRecord) Metrics {
	if len(filtered) == 0 {
		return Metrics{}
	}
	first, last := filtered[0], filtered[len(filtered)-1]
	if first.Open == 0 {
		return Metrics{}
	}
	change := last.Close - first.Open
	return Metrics{
		Change:        change,
		ChangePercent: change / first.Open * 100,
		Available:     true,
	}
}

// View is a filtered slice together with its metrics.
type View struct {
	Range   Range                       `json:"range"`
	Records []provider.HistoricalRecord `json:"records"`
	Metrics
}

// Apply filters series and computes the metrics in one step.
func Apply(series []provider.HistoricalRecord, r Range, now time.Time) View {
	filtered := Filter(series, r, now)
	return View{Range: r, Records: filtered, Metrics: Compute(filtered)}
}
