package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotesync/internal/fetcher"
	"quotesync/internal/reconcile"
	"quotesync/internal/statestore"
	"quotesync/internal/testutil"
)

func TestReconcile_SuccessWritesAllMetricLeaves(t *testing.T) {
	store := statestore.NewMemoryStore()
	rec := reconcile.New(store, "quotes", nil)

	q := testutil.NewFakeQuote("AAPL", "178.23", "-1.73", "-0.96", 50000000)
	q.FetchedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	out, err := rec.Reconcile(context.Background(), []fetcher.Result{fetcher.Success(q)})
	require.NoError(t, err)
	require.Equal(t, reconcile.Outcome{Succeeded: 1}, out)

	want := map[string]string{
		"quotes:AAPL:price":         "178.23",
		"quotes:AAPL:change":        "-1.73",
		"quotes:AAPL:changePercent": "-0.96",
		"quotes:AAPL:volume":        "50000000",
		"quotes:AAPL:lastUpdate":    "2025-06-01T12:00:00Z",
	}
	for path, value := range want {
		got, ok := store.Leaf(path)
		require.True(t, ok, "leaf %s missing", path)
		assert.Equal(t, value, got, "leaf %s", path)
	}

	meta := store.Meta("quotes:AAPL:price")
	assert.Equal(t, "AAPL", meta["symbol"])
	assert.Equal(t, "price", meta["metric"])
}

func TestReconcile_FailureLeavesQuoteLeavesUntouched(t *testing.T) {
	store := statestore.NewMemoryStore()
	rec := reconcile.New(store, "quotes", nil)
	ctx := context.Background()

	q := testutil.NewFakeQuote("AAPL", "100", "1", "1", 10)
	q.FetchedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := rec.Reconcile(ctx, []fetcher.Result{fetcher.Success(q)})
	require.NoError(t, err)

	before := store.Snapshot()
	delete(before, "quotes:AAPL:lastError")

	out, err := rec.Reconcile(ctx, []fetcher.Result{
		testutil.NewFailure("AAPL", fetcher.KindTimeout),
	})
	require.NoError(t, err)
	require.Equal(t, reconcile.Outcome{Failed: 1}, out)

	after := store.Snapshot()
	lastErr, ok := store.Leaf("quotes:AAPL:lastError")
	require.True(t, ok, "lastError diagnostic leaf missing")
	assert.Contains(t, lastErr, "timeout")
	delete(after, "quotes:AAPL:lastError")

	assert.Equal(t, before, after, "quote leaves changed on failure")
}

func TestReconcile_IsIdempotent(t *testing.T) {
	store := statestore.NewMemoryStore()
	rec := reconcile.New(store, "quotes", nil)
	ctx := context.Background()

	q := testutil.NewFakeQuote("MSFT", "412.5", "3.1", "0.76", 22000000)
	q.FetchedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	results := []fetcher.Result{fetcher.Success(q)}

	_, err := rec.Reconcile(ctx, results)
	require.NoError(t, err)
	first := store.Snapshot()

	_, err = rec.Reconcile(ctx, results)
	require.NoError(t, err)
	second := store.Snapshot()

	assert.Equal(t, first, second, "double reconcile changed final state")
}

func TestReconcile_StoreUnavailableAbortsRemainder(t *testing.T) {
	inner := statestore.NewMemoryStore()
	// Let the first symbol's ten store calls succeed, then fail.
	store := &testutil.FailingStore{Inner: inner, FailAfter: 10}
	rec := reconcile.New(store, "quotes", nil)

	results := []fetcher.Result{
		fetcher.Success(testutil.NewFakeQuote("AAPL", "100", "0", "0", 1)),
		fetcher.Success(testutil.NewFakeQuote("MSFT", "200", "0", "0", 2)),
		fetcher.Success(testutil.NewFakeQuote("GOOG", "300", "0", "0", 3)),
	}

	out, err := rec.Reconcile(context.Background(), results)
	require.Error(t, err)
	assert.Equal(t, fetcher.KindStoreUnavailable, fetcher.KindOf(err))

	// The first symbol was applied before the outage; no rollback.
	assert.Equal(t, 1, out.Succeeded)
	_, ok := inner.Leaf("quotes:AAPL:price")
	assert.True(t, ok, "completed symbol's leaves should survive the abort")
	_, ok = inner.Leaf("quotes:GOOG:price")
	assert.False(t, ok, "symbols after the outage must not be written")
}

func TestCleanup_DeletesOnlyUnconfiguredSubtrees(t *testing.T) {
	store := statestore.NewMemoryStore()
	rec := reconcile.New(store, "quotes", nil)
	ctx := context.Background()

	for _, sym := range []string{"AAPL", "MSFT", "OLD"} {
		_, err := rec.Reconcile(ctx, []fetcher.Result{
			fetcher.Success(testutil.NewFakeQuote(sym, "1", "0", "0", 1)),
		})
		require.NoError(t, err)
	}

	require.NoError(t, rec.Cleanup(ctx, []string{"aapl", "MSFT"}))

	subtrees, err := store.ListSubtrees(ctx, "quotes")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, subtrees)

	_, ok := store.Leaf("quotes:OLD:price")
	assert.False(t, ok, "unconfigured subtree should be deleted")
	_, ok = store.Leaf("quotes:AAPL:price")
	assert.True(t, ok, "configured subtree must never be deleted")
}

func TestReconcile_EmptyBatch(t *testing.T) {
	rec := reconcile.New(statestore.NewMemoryStore(), "quotes", nil)

	out, err := rec.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Outcome{}, out)
}
