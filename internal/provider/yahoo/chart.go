package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stockwatch/internal/provider"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// History retrieves the daily series for symbol over the configured range.
func (c *Client) History(ctx context.Context, symbol string) ([]provider.HistoricalRecord, error) {
	return c.Chart(ctx, symbol, c.rng)
}

// Chart retrieves daily bars for symbol over rng ("1y", "5y", "max", ...).
// Bars with a missing close are skipped.
func (c *Client) Chart(ctx context.Context, symbol, rng string) ([]provider.HistoricalRecord, error) {
	sym := provider.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("yahoo: empty symbol: %w", provider.ErrInvalidInput)
	}

	query := url.Values{
		"range":    {rng},
		"interval": {"1d"},
		"events":   {"history"},
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(sym), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: performing request: %v: %w", err, provider.ErrSourceUnavailable)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("yahoo: no data for %s: %w", sym, provider.ErrNotFound)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("yahoo: rate limited: %w", provider.ErrSourceUnavailable)
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("yahoo: unexpected status code %d: %s: %w", res.StatusCode, string(b), provider.ErrSourceUnavailable)
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("yahoo: decoding chart response: %v: %w", err, provider.ErrSourceUnavailable)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s: %w", body.Chart.Error.Code, body.Chart.Error.Description, provider.ErrNotFound)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: empty chart for %s: %w", sym, provider.ErrNotFound)
	}

	r := body.Chart.Result[0]
	q := r.Indicators.Quote[0]
	out := make([]provider.HistoricalRecord, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue
		}
		out = append(out, provider.HistoricalRecord{
			Date:   time.Unix(ts+r.Meta.GMTOffset, 0).UTC().Format("2006-01-02"),
			Open:   value(at(q.Open, i)),
			High:   value(at(q.High, i)),
			Low:    value(at(q.Low, i)),
			Close:  *cl,
			Volume: value(at(q.Volume, i)),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("yahoo: no bars for %s: %w", sym, provider.ErrNotFound)
	}
	return out, nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
