package aggregate_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"stockwatch/internal/aggregate"
	"stockwatch/internal/provider"
)

func quoteOf(symbol string) provider.Quote {
	return provider.Quote{Symbol: symbol, Price: 100, Change: 1, ChangePercent: 1, LastUpdated: "2024-01-02"}
}

func symbolsOf(qs []provider.Quote) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Symbol)
	}
	return out
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	// Arrange: a source that succeeds for every symbol, called in order
	ctrl := gomock.NewController(t)
	src := NewMockQuoteSource(ctrl)
	gomock.InOrder(
		src.EXPECT().Quote(gomock.Any(), "AAPL").Return(quoteOf("AAPL"), nil),
		src.EXPECT().Quote(gomock.Any(), "MSFT").Return(quoteOf("MSFT"), nil),
		src.EXPECT().Quote(gomock.Any(), "GOOGL").Return(quoteOf("GOOGL"), nil),
	)

	// Act
	res := aggregate.New(src).FetchAll(t.Context(), []string{"AAPL", "MSFT", "GOOGL"})

	// Assert
	require.Empty(t, res.Error)
	require.NoError(t, res.Err())
	require.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, symbolsOf(res.Quotes))
}

func TestFetchAll_SkipsFailedSymbols(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockQuoteSource(ctrl)
	gomock.InOrder(
		src.EXPECT().Quote(gomock.Any(), "AAPL").Return(quoteOf("AAPL"), nil),
		src.EXPECT().Quote(gomock.Any(), "BOGUS").Return(provider.Quote{}, fmt.Errorf("no data: %w", provider.ErrNotFound)),
		src.EXPECT().Quote(gomock.Any(), "MSFT").Return(provider.Quote{}, provider.ErrSourceUnavailable),
		src.EXPECT().Quote(gomock.Any(), "TSLA").Return(quoteOf("TSLA"), nil),
	)

	res := aggregate.New(src).FetchAll(t.Context(), []string{"AAPL", "BOGUS", "MSFT", "TSLA"})

	require.Empty(t, res.Error)
	require.Equal(t, []string{"AAPL", "TSLA"}, symbolsOf(res.Quotes))
}

func TestFetchAll_AllFailed(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockQuoteSource(ctrl)
	src.EXPECT().Quote(gomock.Any(), gomock.Any()).Return(provider.Quote{}, provider.ErrNotFound).Times(2)

	res := aggregate.New(src).FetchAll(t.Context(), []string{"X", "Y"})

	require.Equal(t, aggregate.ErrNoData.Error(), res.Error)
	require.ErrorIs(t, res.Err(), aggregate.ErrNoData)
	require.NotNil(t, res.Quotes)
	require.Empty(t, res.Quotes)
}

func TestFetchAll_EmptyInput(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockQuoteSource(ctrl)
	src.EXPECT().Quote(gomock.Any(), gomock.Any()).Times(0)

	res := aggregate.New(src).FetchAll(t.Context(), nil)

	require.Equal(t, aggregate.ErrNoData.Error(), res.Error)
	require.ErrorIs(t, res.Err(), aggregate.ErrNoData)
	require.Empty(t, res.Quotes)
}

// sequentialSource records the highest number of overlapping calls.
type sequentialSource struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *sequentialSource) Quote(_ context.Context, symbol string) (provider.Quote, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	if n > s.maxSeen.Load() {
		s.maxSeen.Store(n)
	}
	time.Sleep(2 * time.Millisecond)
	return quoteOf(symbol), nil
}

func TestFetchAll_OneCallAtATime(t *testing.T) {
	t.Parallel()

	src := &sequentialSource{}
	res := aggregate.New(src).FetchAll(t.Context(), []string{"A", "B", "C", "D"})

	require.Len(t, res.Quotes, 4)
	require.EqualValues(t, 1, src.maxSeen.Load())
}

func TestFetchAll_CanceledContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockQuoteSource(ctrl)

	ctx, cancel := context.WithCancel(t.Context())
	src.EXPECT().Quote(gomock.Any(), "AAPL").DoAndReturn(func(context.Context, string) (provider.Quote, error) {
		cancel()
		return quoteOf("AAPL"), nil
	})

	// Act: the second symbol is never requested once the context is gone
	res := aggregate.New(src).FetchAll(ctx, []string{"AAPL", "MSFT"})
	require.Equal(t, []string{"AAPL"}, symbolsOf(res.Quotes))
	require.Empty(t, res.Error)

	// Act: nothing fetched before cancellation
	res = aggregate.New(src).FetchAll(ctx, []string{"MSFT"})
	require.Empty(t, res.Quotes)
	require.Equal(t, context.Canceled.Error(), res.Error)
	require.ErrorIs(t, res.Err(), context.Canceled)
	require.NotErrorIs(t, res.Err(), aggregate.ErrNoData)
}
