package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/internal/config"
	"stockwatch/internal/httpx"
	"stockwatch/internal/provider"
	"stockwatch/internal/provider/dataset"
	"stockwatch/internal/provider/ratelimit"
	"stockwatch/internal/provider/yahoo"
)

func main() {
	var symbolsCSV string
	var tickersFile string
	var outDir string
	var rng string
	var intervalMS int
	var timeout int
	var configPath string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated ticker symbols")
	flag.StringVar(&tickersFile, "tickers-file", getenv("TICKERS_FILE", ""), `JSON file of the form {"tickers": [...]}`)
	flag.StringVar(&outDir, "out", "", "dataset directory (defaults to data.dir)")
	flag.StringVar(&rng, "range", "", "history range passed to the chart endpoint (defaults to yahoo.range)")
	flag.IntVar(&intervalMS, "interval-ms", -1, "minimum delay between requests in ms (defaults to yahoo.min_request_interval_ms)")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (defaults to yahoo.timeout_sec)")
	flag.StringVar(&configPath, "config", "", "path to config.json or config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if outDir != "" {
		cfg.Data.Dir = outDir
	}
	if rng != "" {
		cfg.Yahoo.Range = rng
	}
	if intervalMS >= 0 {
		cfg.Yahoo.MinRequestIntervalMS = intervalMS
	}
	if timeout > 0 {
		cfg.Yahoo.TimeoutSec = timeout
	}

	symbols := config.SplitCSV(symbolsCSV)
	if tickersFile != "" {
		more, err := readTickers(tickersFile)
		if err != nil {
			log.Fatalf("tickers: %v", err)
		}
		symbols = append(symbols, more...)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols: pass -symbols or -tickers-file")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpx.New(time.Duration(cfg.Yahoo.TimeoutSec) * time.Second)
	yc := yahoo.NewClient(
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithHTTPClient(httpClient),
		yahoo.WithRange(cfg.Yahoo.Range),
		yahoo.WithHeader(http.Header{"Accept": []string{"application/json"}}),
	)
	var src provider.HistorySource = yc
	if cfg.Yahoo.MinRequestIntervalMS > 0 {
		src = &ratelimit.Histories{
			Source:  yc,
			Limiter: &ratelimit.MinInterval{Interval: time.Duration(cfg.Yahoo.MinRequestIntervalMS) * time.Millisecond},
		}
	}

	n := export(ctx, src, dataset.New(cfg.Data.Dir), symbols)
	log.Printf("exported %d of %d symbols to %s", n, len(symbols), cfg.Data.Dir)
	if n == 0 {
		os.Exit(1)
	}
}

// export downloads each symbol in turn and saves it as a dataset. Failures
// are logged and skipped. It returns the number of datasets written.
func export(ctx context.Context, src provider.HistorySource, sink *dataset.Source, symbols []string) int {
	seen := make(map[string]bool, len(symbols))
	n := 0
	for _, s := range symbols {
		sym := provider.NormalizeSymbol(s)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		if ctx.Err() != nil {
			break
		}

		series, err := src.History(ctx, sym)
		if err != nil {
			log.Printf("fetch %s: %v", sym, err)
			continue
		}
		if len(series) == 0 {
			log.Printf("fetch %s: empty series", sym)
			continue
		}
		if err := sink.Save(sym, series); err != nil {
			log.Printf("save %s: %v", sym, err)
			continue
		}
		log.Printf("exported %s (%d records) to %s", sym, len(series), dataset.FileName(sym))
		n++
	}
	return n
}

type tickerList struct {
	Tickers []string `json:"tickers"`
}

func readTickers(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tl tickerList
	if err := json.Unmarshal(b, &tl); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(tl.Tickers) == 0 {
		return nil, errors.New("no tickers in " + path)
	}
	return tl.Tickers, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
