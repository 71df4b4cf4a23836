// Package watchlist holds the ordered set of tracked symbols and keeps it
// durable through a key-value Storage.
//
// A process builds one Store at start-up and shares it. The persisted list
// is read lazily on first access; if it is absent or cannot be decoded the
// default seed is used instead.
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"slices"
	"sync"

	"stockwatch/internal/provider"
)

// Key is the storage key of the persisted list.
const Key = "watchlist"

// DefaultSymbols seeds a watchlist that was never saved.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL"}

// ErrDuplicate is returned by Add for a symbol that is already tracked.
var ErrDuplicate = fmt.Errorf("%w: already in watchlist", provider.ErrInvalidInput)

// Storage is a durable key-value store. Get reports a missing key with an
// error wrapping fs.ErrNotExist.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Store struct {
	storage Storage

	mu      sync.Mutex
	loaded  bool
	symbols []string
	subs    map[int]chan []string
	nextSub int
}

func New(storage Storage) *Store {
	return &Store{storage: storage, subs: make(map[int]chan []string)}
}

// Load returns the list, reading it from storage on first use. It never
// fails: missing or undecodable state yields DefaultSymbols.
func (s *Store) Load(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return slices.Clone(s.symbols)
}

// Symbols is an alias of Load for readers.
func (s *Store) Symbols(ctx context.Context) []string { return s.Load(ctx) }

// Contains reports whether symbol is tracked, ignoring case and spaces.
func (s *Store) Contains(ctx context.Context, symbol string) bool {
	sym := provider.NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return slices.Contains(s.symbols, sym)
}

// Add appends symbol after normalizing it. An empty symbol returns
// provider.ErrInvalidInput and a tracked one ErrDuplicate; in both cases
// the list is returned unchanged.
func (s *Store) Add(ctx context.Context, symbol string) ([]string, error) {
	sym := provider.NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if sym == "" {
		return slices.Clone(s.symbols), fmt.Errorf("empty symbol: %w", provider.ErrInvalidInput)
	}
	if slices.Contains(s.symbols, sym) {
		return slices.Clone(s.symbols), fmt.Errorf("%s: %w", sym, ErrDuplicate)
	}
	s.symbols = append(s.symbols, sym)
	s.commit(ctx)
	return slices.Clone(s.symbols), nil
}

// Remove drops symbol from the list. Removing an untracked symbol is a no-op.
func (s *Store) Remove(ctx context.Context, symbol string) []string {
	sym := provider.NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := slices.Index(s.symbols, sym)
	if i < 0 {
		return slices.Clone(s.symbols)
	}
	s.symbols = slices.Delete(s.symbols, i, i+1)
	s.commit(ctx)
	return slices.Clone(s.symbols)
}

// Subscribe returns a channel receiving the list after every change.
// A slow reader only ever sees the latest list. Call cancel to stop.
func (s *Store) Subscribe() (updates <-chan []string, cancel func()) {
	ch := make(chan []string, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// ensureLoaded must be called with mu held.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	// a caller that gives up must not make the seed stick for the session
	s.symbols = s.read(context.WithoutCancel(ctx))
	s.loaded = true
}

func (s *Store) read(ctx context.Context) []string {
	if s.storage == nil {
		return slices.Clone(DefaultSymbols)
	}
	b, err := s.storage.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("watchlist: load: %v; using defaults", err)
		}
		return slices.Clone(DefaultSymbols)
	}

	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		log.Printf("watchlist: stored value is not a symbol list (%v); using defaults", err)
		return slices.Clone(DefaultSymbols)
	}

	out := make([]string, 0, len(raw))
	for _, r := range raw {
		sym := provider.NormalizeSymbol(r)
		if sym == "" || slices.Contains(out, sym) {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// commit persists and publishes the current list. Must be called with mu held,
// which keeps writes in mutation order.
func (s *Store) commit(ctx context.Context) {
	if s.storage != nil {
		if err := s.write(context.WithoutCancel(ctx)); err != nil {
			log.Printf("watchlist: save: %v", err)
		}
	}
	for _, ch := range s.subs {
		snapshot := slices.Clone(s.symbols)
		// keep only the newest list in the buffer
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *Store) write(ctx context.Context) error {
	b, err := json.Marshal(s.symbols)
	if err != nil {
		return fmt.Errorf("encode: %v: %w", err, provider.ErrPersistence)
	}
	if err := s.storage.Put(ctx, Key, b); err != nil {
		return fmt.Errorf("%v: %w", err, provider.ErrPersistence)
	}
	return nil
}
