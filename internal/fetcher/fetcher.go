package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"quotesync/internal/quote"
)

// Transport is the capability interface for fetching a single symbol's
// quote from the remote API. The rate-limited API client implements it;
// test doubles substitute it directly.
type Transport interface {
	Fetch(ctx context.Context, symbol string) (quote.Quote, error)
}

// Cache is the symbol-validity cache consulted before fetching and updated
// after every fetch outcome.
type Cache interface {
	IsKnownInvalid(symbol string) bool
	Record(symbol string, valid bool, at time.Time)
}

// QuoteFetcher fans a batch of symbols out to the transport with bounded
// concurrency. Concurrency exists only to hide latency: the transport's
// rate limiter still bounds the outbound request rate.
type QuoteFetcher struct {
	transport   Transport
	cache       Cache
	maxInFlight int64
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a QuoteFetcher. maxInFlight values below 1 are clamped to 1.
func New(transport Transport, cache Cache, maxInFlight int, logger *slog.Logger) *QuoteFetcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteFetcher{
		transport:   transport,
		cache:       cache,
		maxInFlight: int64(maxInFlight),
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the timestamp source used for cache records. Tests
// use it together with a simulated cache clock.
func (f *QuoteFetcher) SetClock(now func() time.Time) {
	f.now = now
}

// FetchAll fetches every symbol and returns one Result per symbol in the
// same order as requested. One symbol's failure never cancels or affects
// the others. Cache updates per outcome: NotFound marks the symbol
// invalid, success marks it valid, transient failures leave it unchanged.
func (f *QuoteFetcher) FetchAll(ctx context.Context, symbols []string) []Result {
	results := make([]Result, len(symbols))
	sem := semaphore.NewWeighted(f.maxInFlight)
	var wg sync.WaitGroup

	for i, s := range symbols {
		sym := quote.NormalizeSymbol(s)

		// Symbols already confirmed invalid are not worth a request.
		// The orchestrator normally partitions these out before calling
		// FetchAll; this guard keeps direct callers honest.
		if f.cache != nil && f.cache.IsKnownInvalid(sym) {
			results[i] = Failure(sym, NewNotFoundError(sym))
			continue
		}

		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = Failure(sym, NewTimeoutError(err))
				return
			}
			defer sem.Release(1)

			q, err := f.transport.Fetch(ctx, sym)
			if err != nil {
				f.logger.Warn("fetch failed",
					"symbol", sym,
					"kind", KindOf(err),
					"err", err,
				)
				results[idx] = Failure(sym, err)
				f.recordOutcome(sym, err)
				return
			}

			results[idx] = Success(q)
			f.recordOutcome(sym, nil)
		}(i, sym)
	}

	wg.Wait()
	return results
}

// recordOutcome updates the symbol cache after a fetch. Only NotFound is a
// validity signal; transient errors say nothing about the symbol itself.
func (f *QuoteFetcher) recordOutcome(sym string, err error) {
	if f.cache == nil {
		return
	}
	switch {
	case err == nil:
		f.cache.Record(sym, true, f.now())
	case KindOf(err) == KindNotFound:
		f.cache.Record(sym, false, f.now())
	}
}
