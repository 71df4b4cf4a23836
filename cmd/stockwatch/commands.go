package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"stockwatch/internal/aggregate"
	"stockwatch/internal/config"
	"stockwatch/internal/display"
	"stockwatch/internal/provider"
	"stockwatch/internal/provider/dataset"
	"stockwatch/internal/storage"
	"stockwatch/internal/timerange"
	"stockwatch/internal/watchlist"
)

// env is shared by every command. Config, storage and the dataset are
// opened on first use, so commands like help never touch them.
type env struct {
	out  io.Writer
	now  func() time.Time
	load func() (config.Config, error)

	cfg     *config.Config
	store   *watchlist.Store
	src     *dataset.Source
	closers []func()
}

func register(c *subcommands.Commander, e *env) {
	c.Register(&listCmd{e}, "watchlist")
	c.Register(&addCmd{e}, "watchlist")
	c.Register(&removeCmd{e}, "watchlist")
	c.Register(&quotesCmd{e}, "market data")
	c.Register(&historyCmd{env: e}, "market data")
}

func (e *env) config() (config.Config, error) {
	if e.cfg != nil {
		return *e.cfg, nil
	}
	cfg, err := e.load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	e.cfg = &cfg
	return cfg, nil
}

func (e *env) dataset() (*dataset.Source, error) {
	if e.src != nil {
		return e.src, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	e.src = dataset.New(cfg.Data.Dir)
	return e.src, nil
}

func (e *env) watchlist(ctx context.Context) (*watchlist.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	var st watchlist.Storage
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		st = storage.NewMemory()
	case config.DriverPostgres:
		pool, err := storage.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: %w", err)
		}
		st = pg
		e.closers = append(e.closers, pool.Close)
	default:
		st = storage.NewFile(cfg.Storage.Dir)
	}
	e.store = watchlist.New(st)
	return e.store, nil
}

// close releases whatever the commands opened.
func (e *env) close() {
	for _, c := range e.closers {
		c()
	}
	e.closers = nil
}

// both opens the watchlist and the dataset, reporting failure on stderr.
func (e *env) both(ctx context.Context) (*watchlist.Store, *dataset.Source, bool) {
	store, err := e.watchlist(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, false
	}
	src, err := e.dataset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, false
	}
	return store, src, true
}

func (e *env) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *env) printList(symbols []string) {
	if len(symbols) == 0 {
		fmt.Fprintln(e.out, "(watchlist is empty)")
		return
	}
	for _, s := range symbols {
		fmt.Fprintln(e.out, s)
	}
}

type listCmd struct{ *env }

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "prints the tracked symbols" }
func (*listCmd) Usage() string {
	return `list

Prints the watchlist, one symbol per line, in the order they were added.
`
}
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := c.watchlist(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	c.printList(store.Symbols(ctx))
	return subcommands.ExitSuccess
}

type addCmd struct{ *env }

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "adds a symbol to the watchlist" }
func (*addCmd) Usage() string {
	return `add SYMBOL

Adds SYMBOL to the end of the watchlist. The symbol must have a dataset
with at least two records.
`
}
func (*addCmd) SetFlags(*flag.FlagSet) {}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: Please enter a stock symbol")
		return subcommands.ExitUsageError
	}
	sym := provider.NormalizeSymbol(f.Arg(0))
	if sym == "" {
		fmt.Fprintln(os.Stderr, "Error: Please enter a stock symbol")
		return subcommands.ExitUsageError
	}
	store, src, ok := c.both(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	if store.Contains(ctx, sym) {
		fmt.Fprintln(os.Stderr, "Error: Stock already in watchlist")
		return subcommands.ExitFailure
	}
	if _, err := src.Quote(ctx, sym); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid stock symbol or data unavailable: %v\n", err)
		return subcommands.ExitFailure
	}
	symbols, err := store.Add(ctx, sym)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	c.printList(symbols)
	return subcommands.ExitSuccess
}

type removeCmd struct{ *env }

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "removes a symbol from the watchlist" }
func (*removeCmd) Usage() string {
	return `remove SYMBOL

Removes SYMBOL from the watchlist. Removing an untracked symbol does nothing.
`
}
func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: Please enter a stock symbol")
		return subcommands.ExitUsageError
	}
	store, err := c.watchlist(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	c.printList(store.Remove(ctx, f.Arg(0)))
	return subcommands.ExitSuccess
}

type quotesCmd struct{ *env }

func (*quotesCmd) Name() string     { return "quotes" }
func (*quotesCmd) Synopsis() string { return "prints a quote for every tracked symbol" }
func (*quotesCmd) Usage() string {
	return `quotes

Prints price and daily change for each watchlist symbol. Symbols without
data are skipped.
`
}
func (*quotesCmd) SetFlags(*flag.FlagSet) {}

func (c *quotesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, src, ok := c.both(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	res := aggregate.New(src).FetchAll(ctx, store.Symbols(ctx))
	if err := res.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, q := range res.Quotes {
		b := display.ForQuote(q, display.DefaultCurrency)
		fmt.Fprintf(c.out, "%-8s %12s %20s  %s\n", q.Symbol, b.Price, b.Change, q.LastUpdated)
	}
	return subcommands.ExitSuccess
}

type historyCmd struct {
	*env
	rng string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "prints daily history of a symbol over a time range" }
func (*historyCmd) Usage() string {
	return `history [-range 3M|1Y|3Y|ALL] SYMBOL

Prints the daily closes of SYMBOL within the range, followed by the change
from the first open to the last close.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.rng, "range", string(timerange.All), "time range: 3M, 1Y, 3Y or ALL")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: Please enter a stock symbol")
		return subcommands.ExitUsageError
	}
	rng, err := timerange.Parse(c.rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	src, err := c.dataset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	sym := provider.NormalizeSymbol(f.Arg(0))
	series, err := src.History(ctx, sym)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(series) == 0 {
		fmt.Fprintf(os.Stderr, "Error: No data found for %s\n", sym)
		return subcommands.ExitFailure
	}

	view := timerange.Apply(series, rng, c.clock())
	for _, r := range view.Records {
		fmt.Fprintf(c.out, "%s %12s\n", r.Date, display.Price(r.Close, display.DefaultCurrency))
	}
	if view.Available {
		fmt.Fprintf(c.out, "%s change: %s\n", view.Range, display.Change(view.Change, view.ChangePercent))
	} else {
		fmt.Fprintf(c.out, "%s change: n/a\n", view.Range)
	}
	return subcommands.ExitSuccess
}
