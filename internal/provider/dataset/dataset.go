// Package dataset serves quotes and daily history from static per-symbol
// JSON files named <SYMBOL>_data.json.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stockwatch/internal/provider"
)

const fileSuffix = "_data.json"

// Source reads datasets from Dir.
type Source struct {
	Dir string
}

func New(dir string) *Source { return &Source{Dir: dir} }

// FileName returns the dataset file name for a symbol.
func FileName(symbol string) string {
	return provider.NormalizeSymbol(symbol) + fileSuffix
}

// History returns the stored series for symbol in file order.
func (s *Source) History(ctx context.Context, symbol string) ([]provider.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := provider.NormalizeSymbol(symbol)
	if sym == "" || strings.ContainsAny(sym, `/\`) {
		return nil, fmt.Errorf("dataset: symbol %q: %w", symbol, provider.ErrInvalidInput)
	}

	b, err := os.ReadFile(filepath.Join(s.Dir, FileName(sym)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset: no data for %s: %w", sym, provider.ErrNotFound)
		}
		return nil, fmt.Errorf("dataset: read %s: %v: %w", sym, err, provider.ErrSourceUnavailable)
	}

	var series []provider.HistoricalRecord
	if err := json.Unmarshal(b, &series); err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %v: %w", sym, err, provider.ErrSourceUnavailable)
	}
	return series, nil
}

// Quote diffs the two most recent closes of the symbol's dataset.
func (s *Source) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	series, err := s.History(ctx, symbol)
	if err != nil {
		return provider.Quote{}, err
	}
	return provider.QuoteFromHistory(provider.NormalizeSymbol(symbol), series)
}

// Symbols lists the symbols that have a dataset, sorted.
func (s *Source) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(out)
	return out, nil
}

// Save writes the series for symbol, replacing any existing dataset.
// The file is written to a temporary name first and renamed into place.
func (s *Source) Save(symbol string, series []provider.HistoricalRecord) error {
	sym := provider.NormalizeSymbol(symbol)
	if sym == "" || strings.ContainsAny(sym, `/\`) {
		return fmt.Errorf("dataset: symbol %q: %w", symbol, provider.ErrInvalidInput)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("dataset: mkdir: %w", err)
	}
	b, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("dataset: encode %s: %w", sym, err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+sym+"-*.tmp")
	if err != nil {
		return fmt.Errorf("dataset: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("dataset: write %s: %w", sym, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close %s: %w", sym, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.Dir, FileName(sym)))
}
