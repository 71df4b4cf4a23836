// Package api exposes the watchlist, quotes and per-symbol history over
// HTTP/JSON, plus a websocket feed of watchlist changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stockwatch/internal/aggregate"
	"stockwatch/internal/display"
	"stockwatch/internal/provider"
	"stockwatch/internal/watchlist"
)

// Server holds the collaborators the handlers need. Zero Timeout disables
// the per-request deadline; nil Now means time.Now.
type Server struct {
	Watchlist  *watchlist.Store
	Aggregator *aggregate.Aggregator
	Quotes     provider.QuoteSource
	History    provider.HistorySource
	Currency   string
	Timeout    time.Duration
	Now        func() time.Time
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleAddSymbol)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveSymbol)
	mux.HandleFunc("GET /api/quotes", s.handleQuotes)
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStock)
	mux.HandleFunc("GET /ws/watchlist", s.handleWatchlistWS)

	return withJSONHeaders(withGzip(recoverPanic(limitBody(mux))))
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return display.DefaultCurrency
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.Timeout > 0 {
		return context.WithTimeout(r.Context(), s.Timeout)
	}
	return context.WithCancel(r.Context())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, provider.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
