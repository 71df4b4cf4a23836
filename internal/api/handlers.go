package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"stockwatch/internal/display"
	"stockwatch/internal/provider"
	"stockwatch/internal/timerange"
	"stockwatch/internal/watchlist"
)

// User-facing messages of the add flow.
const (
	msgEmptySymbol   = "Please enter a stock symbol"
	msgDuplicate     = "Stock already in watchlist"
	msgInvalidSymbol = "Invalid stock symbol or data unavailable"
)

type watchlistResponse struct {
	Symbols []string `json:"symbols"`
}

type addBody struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, watchlistResponse{Symbols: s.Watchlist.Symbols(r.Context())})
}

// handleAddSymbol validates a symbol by fetching its quote before tracking it.
func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	var b addBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sym := provider.NormalizeSymbol(b.Symbol)
	if sym == "" {
		writeError(w, http.StatusBadRequest, msgEmptySymbol)
		return
	}
	if s.Watchlist.Contains(r.Context(), sym) {
		writeError(w, http.StatusConflict, msgDuplicate)
		return
	}

	if s.Quotes != nil {
		ctx, cancel := s.requestContext(r)
		_, err := s.Quotes.Quote(ctx, sym)
		cancel()
		if err != nil {
			log.Printf("api: validate %s: %v", sym, err)
			writeError(w, http.StatusUnprocessableEntity, msgInvalidSymbol)
			return
		}
	}

	symbols, err := s.Watchlist.Add(r.Context(), sym)
	switch {
	case errors.Is(err, watchlist.ErrDuplicate):
		// lost a race with a concurrent add
		writeError(w, http.StatusConflict, msgDuplicate)
	case err != nil:
		writeError(w, http.StatusBadRequest, msgEmptySymbol)
	default:
		writeJSON(w, http.StatusCreated, watchlistResponse{Symbols: symbols})
	}
}

func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	symbols := s.Watchlist.Remove(r.Context(), r.PathValue("symbol"))
	writeJSON(w, http.StatusOK, watchlistResponse{Symbols: symbols})
}

type quoteView struct {
	provider.Quote
	Display display.Block `json:"display"`
}

type quotesResponse struct {
	Quotes []quoteView `json:"quotes"`
	Error  string      `json:"error,omitempty"`
}

// handleQuotes fetches quotes for the current watchlist. A batch with no
// quotes is still a 200; Error carries the explanation.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	res := s.Aggregator.FetchAll(ctx, s.Watchlist.Symbols(ctx))
	resp := quotesResponse{Quotes: make([]quoteView, 0, len(res.Quotes)), Error: res.Error}
	for _, q := range res.Quotes {
		resp.Quotes = append(resp.Quotes, quoteView{Quote: q, Display: display.ForQuote(q, s.currency())})
	}
	writeJSON(w, http.StatusOK, resp)
}

type stockResponse struct {
	Symbol  string          `json:"symbol"`
	Quote   *provider.Quote `json:"quote"`
	Display *display.Block  `json:"display"`
	timerange.View
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	sym := provider.NormalizeSymbol(r.PathValue("symbol"))

	rng := timerange.All
	if v := r.URL.Query().Get("range"); v != "" {
		parsed, err := timerange.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = parsed
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	series, err := s.History.History(ctx, sym)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		// details such as file paths stay in the log
		log.Printf("api: history %s: %v", sym, err)
		status := statusFor(err)
		writeError(w, status, historyFailure(status, sym))
		return
	}
	if len(series) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for %s", sym))
		return
	}

	resp := stockResponse{Symbol: sym, View: timerange.Apply(series, rng, s.now())}
	if q, err := provider.QuoteFromHistory(sym, series); err == nil {
		b := display.ForQuote(q, s.currency())
		resp.Quote = &q
		resp.Display = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func historyFailure(status int, sym string) string {
	switch status {
	case http.StatusBadRequest:
		return fmt.Sprintf("Invalid stock symbol %q", sym)
	case http.StatusGatewayTimeout:
		return fmt.Sprintf("Timed out loading data for %s", sym)
	default:
		return fmt.Sprintf("Data for %s is unavailable", sym)
	}
}
