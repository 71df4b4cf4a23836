package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"stockwatch/internal/config"
	"stockwatch/internal/provider"
	"stockwatch/internal/provider/dataset"
	"stockwatch/internal/storage"
)

func TestOpenStorage(t *testing.T) {
	t.Parallel()

	s, done, err := openStorage(t.Context(), config.Storage{Driver: config.DriverMemory})
	require.NoError(t, err)
	defer done()
	require.IsType(t, &storage.Memory{}, s)

	dir := filepath.Join(t.TempDir(), "state")
	s, done, err = openStorage(t.Context(), config.Storage{Driver: config.DriverFile, Dir: dir})
	require.NoError(t, err)
	defer done()
	require.NoError(t, s.Put(t.Context(), "watchlist", []byte(`[]`)))

	_, _, err = openStorage(t.Context(), config.Storage{Driver: "bolt"})
	require.Error(t, err)
}

func TestSources_RateLimited(t *testing.T) {
	t.Parallel()

	src := dataset.New(t.TempDir())
	require.NoError(t, src.Save("AAPL", []provider.HistoricalRecord{{Date: "2024-01-01", Close: 1}, {Date: "2024-01-02", Close: 2}}))

	quotes, history := sources(src, config.Quotes{MinRequestIntervalMS: 50})

	start := time.Now()
	for range 3 {
		_, err := quotes.Quote(t.Context(), "AAPL")
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	series, err := history.History(t.Context(), "aapl")
	require.NoError(t, err)
	require.Len(t, series, 2)
}

func TestSources_Unlimited(t *testing.T) {
	t.Parallel()

	quotes, _ := sources(dataset.New(t.TempDir()), config.Quotes{})
	require.IsType(t, &dataset.Source{}, quotes)
}
