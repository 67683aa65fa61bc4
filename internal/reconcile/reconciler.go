package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"quotesync/internal/fetcher"
	"quotesync/internal/quote"
	"quotesync/internal/statestore"
)

// Reconciler maps fetch results onto the state tree. One subtree per
// symbol, one leaf per metric. It is the only writer of that tree.
type Reconciler struct {
	store  statestore.Store
	prefix string
	logger *slog.Logger
}

// Outcome is the reconciler's contribution to the cycle summary.
type Outcome struct {
	Succeeded int
	Failed    int
}

// New creates a Reconciler writing under the given path prefix.
func New(store statestore.Store, prefix string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, prefix: prefix, logger: logger}
}

// Reconcile applies a batch of fetch results. Successes write all five
// metric leaves (create-if-absent, idempotent); failures leave existing
// quote leaves untouched and only record a diagnostic. The first store
// error aborts the remaining results; leaves already written stay.
func (r *Reconciler) Reconcile(ctx context.Context, results []fetcher.Result) (Outcome, error) {
	var out Outcome
	for _, res := range results {
		if res.OK() {
			if err := r.applyQuote(ctx, res.Quote); err != nil {
				return out, err
			}
			out.Succeeded++
			continue
		}

		out.Failed++
		if err := r.recordFailure(ctx, res); err != nil {
			return out, err
		}
	}
	return out, nil
}

// applyQuote ensures the symbol's metric leaves exist and writes the
// fetched values. Writes are atomic per leaf; the subtree as a whole is
// not, which is fine since this process is the only writer.
func (r *Reconciler) applyQuote(ctx context.Context, q quote.Quote) error {
	values := map[string]string{
		quote.MetricPrice:         q.Price.String(),
		quote.MetricChange:        q.Change.String(),
		quote.MetricChangePercent: q.ChangePercent.String(),
		quote.MetricVolume:        strconv.FormatInt(q.Volume, 10),
		quote.MetricLastUpdate:    q.FetchedAt.UTC().Format(time.RFC3339),
	}

	for _, metric := range quote.Metrics {
		path := r.leafPath(q.Symbol, metric)
		meta := map[string]string{"symbol": q.Symbol, "metric": metric}
		if err := r.store.EnsureLeaf(ctx, path, meta); err != nil {
			return fetcher.NewStoreUnavailableError(err)
		}
		if err := r.store.WriteLeaf(ctx, path, values[metric], true); err != nil {
			return fetcher.NewStoreUnavailableError(err)
		}
	}

	r.logger.Debug("reconciled quote",
		"symbol", q.Symbol,
		"price", q.Price.String(),
	)
	return nil
}

// recordFailure writes the lastError diagnostic leaf without touching the
// quote leaves, so stale-but-last-known-good data stays readable.
func (r *Reconciler) recordFailure(ctx context.Context, res fetcher.Result) error {
	path := r.leafPath(res.Symbol, quote.MetricLastError)
	meta := map[string]string{"symbol": res.Symbol, "metric": quote.MetricLastError}
	if err := r.store.EnsureLeaf(ctx, path, meta); err != nil {
		return fetcher.NewStoreUnavailableError(err)
	}
	if err := r.store.WriteLeaf(ctx, path, string(res.Kind())+": "+res.Err.Error(), false); err != nil {
		return fetcher.NewStoreUnavailableError(err)
	}
	return nil
}

// Cleanup deletes subtrees for symbols no longer configured. It runs
// outside the hot cycle, at startup or on configuration change; subtrees
// for still-configured symbols are never deleted.
func (r *Reconciler) Cleanup(ctx context.Context, configured []string) error {
	keep := make(map[string]struct{}, len(configured))
	for _, s := range configured {
		keep[quote.NormalizeSymbol(s)] = struct{}{}
	}

	subtrees, err := r.store.ListSubtrees(ctx, r.prefix)
	if err != nil {
		return fetcher.NewStoreUnavailableError(err)
	}

	for _, sym := range subtrees {
		if _, ok := keep[sym]; ok {
			continue
		}
		if err := r.store.DeleteSubtree(ctx, statestore.Path(r.prefix, sym)); err != nil {
			return fetcher.NewStoreUnavailableError(err)
		}
		r.logger.Info("removed state for unconfigured symbol", "symbol", sym)
	}
	return nil
}

func (r *Reconciler) leafPath(symbol, metric string) string {
	return statestore.Path(r.prefix, symbol, metric)
}
