package cycle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotesync/internal/cycle"
	"quotesync/internal/fetcher"
	"quotesync/internal/symcache"
	"quotesync/internal/testutil"
)

// countingFetcher counts FetchAll invocations.
type countingFetcher struct {
	calls atomic.Int32
}

func (c *countingFetcher) FetchAll(ctx context.Context, symbols []string) []fetcher.Result {
	c.calls.Add(1)
	results := make([]fetcher.Result, len(symbols))
	for i, sym := range symbols {
		results[i] = fetcher.Success(testutil.NewFakeQuote(sym, "1", "0", "0", 1))
	}
	return results
}

func TestRunner_FirstCycleRunsImmediately(t *testing.T) {
	f := &countingFetcher{}
	orc, _ := newOrchestrator(t, symbols("AAPL"), symcache.New(time.Hour), f)
	r := cycle.NewRunner(orc, time.Hour, nil)

	r.Start(context.Background())

	require.Eventually(t, func() bool {
		return f.calls.Load() == 1
	}, time.Second, 5*time.Millisecond, "first cycle did not run before the first tick")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
}

func TestRunner_TicksAndStops(t *testing.T) {
	f := &countingFetcher{}
	orc, _ := newOrchestrator(t, symbols("AAPL"), symcache.New(time.Hour), f)
	r := cycle.NewRunner(orc, 20*time.Millisecond, nil)

	r.Start(context.Background())

	require.Eventually(t, func() bool {
		return f.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))

	after := f.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load(), "cycles kept firing after Stop")
}
