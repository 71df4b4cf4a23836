// Package yahoo downloads daily bars from the Yahoo Finance chart endpoint.
package yahoo

import "net/http"

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultRange   = "5y"
)

// HTTPClient is the subset of *http.Client the chart client needs.
// *httpx.Client satisfies it and adds retries.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches chart data. Build it with NewClient.
type Client struct {
	baseURL string
	doer    HTTPClient
	header  http.Header
	rng     string // lookback used by History, e.g. "5y" or "max"
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
// An empty value keeps the default.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(doer HTTPClient) Option {
	return func(c *Client) { c.doer = doer }
}

// WithHeader adds headers sent with every request.
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.header.Add(k, v)
			}
		}
	}
}

// WithRange sets the lookback History asks for. An empty value keeps "5y".
func WithRange(rng string) Option {
	return func(c *Client) {
		if rng != "" {
			c.rng = rng
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		doer:    http.DefaultClient,
		header:  http.Header{},
		rng:     defaultRange,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
