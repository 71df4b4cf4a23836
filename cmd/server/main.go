package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/internal/aggregate"
	"stockwatch/internal/api"
	"stockwatch/internal/config"
	"stockwatch/internal/provider"
	"stockwatch/internal/provider/coalesce"
	"stockwatch/internal/provider/dataset"
	"stockwatch/internal/provider/ratelimit"
	"stockwatch/internal/storage"
	"stockwatch/internal/watchlist"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStore()

	src := dataset.New(cfg.Data.Dir)
	quotes, history := sources(src, cfg.Quotes)

	s := &api.Server{
		Watchlist:  watchlist.New(store),
		Aggregator: aggregate.New(quotes),
		Quotes:     quotes,
		History:    history,
		Timeout:    time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+10) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s (data=%s storage=%s)", cfg.Server.Port, cfg.Data.Dir, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// sources wraps the dataset in the configured rate limit. History loads are
// additionally coalesced so concurrent detail views share one read.
func sources(src *dataset.Source, cfg config.Quotes) (provider.QuoteSource, provider.HistorySource) {
	var quotes provider.QuoteSource = src
	var history provider.HistorySource = &coalesce.Histories{Source: src}

	lim := ratelimit.FromConfig(cfg.MaxRequestsPerMinute, cfg.Burst, time.Duration(cfg.MinRequestIntervalMS)*time.Millisecond)
	if lim != nil {
		quotes = &ratelimit.Quotes{Source: quotes, Limiter: lim}
		history = &ratelimit.Histories{Source: history, Limiter: lim}
	}
	return quotes, history
}

// openStorage builds the configured watchlist backend. The returned func
// releases it.
func openStorage(ctx context.Context, cfg config.Storage) (watchlist.Storage, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), func() {}, nil
	case config.DriverFile:
		return storage.NewFile(cfg.Dir), func() {}, nil
	case config.DriverPostgres:
		pool, err := storage.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
