package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"quotesync/internal/fetcher"
	"quotesync/internal/quote"
	"quotesync/internal/statestore"
)

// MockTransport is a scriptable implementation of fetcher.Transport.
type MockTransport struct {
	FetchFunc func(ctx context.Context, symbol string) (quote.Quote, error)

	mu    sync.Mutex
	calls []string
}

// Fetch implements the Transport interface and records the call.
func (m *MockTransport) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return quote.Quote{Symbol: symbol}, nil
}

// Calls returns the symbols fetched so far, in call order.
func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// FailingStore wraps a Store and fails every call after the first
// FailAfter successful ones, simulating the store going down mid-cycle.
type FailingStore struct {
	Inner     statestore.Store
	FailAfter int
	Err       error

	mu    sync.Mutex
	calls int
}

func (s *FailingStore) tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > s.FailAfter {
		if s.Err != nil {
			return s.Err
		}
		return statestore.ErrUnavailable
	}
	return nil
}

func (s *FailingStore) EnsureLeaf(ctx context.Context, path string, metadata map[string]string) error {
	if err := s.tick(); err != nil {
		return err
	}
	return s.Inner.EnsureLeaf(ctx, path, metadata)
}

func (s *FailingStore) WriteLeaf(ctx context.Context, path, value string, ack bool) error {
	if err := s.tick(); err != nil {
		return err
	}
	return s.Inner.WriteLeaf(ctx, path, value, ack)
}

func (s *FailingStore) DeleteSubtree(ctx context.Context, path string) error {
	if err := s.tick(); err != nil {
		return err
	}
	return s.Inner.DeleteSubtree(ctx, path)
}

func (s *FailingStore) ListSubtrees(ctx context.Context, prefix string) ([]string, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	return s.Inner.ListSubtrees(ctx, prefix)
}

// NewFakeQuote builds a Quote literal for tests.
func NewFakeQuote(symbol, price, change, changePct string, volume int64) quote.Quote {
	return quote.Quote{
		Symbol:        quote.NormalizeSymbol(symbol),
		Price:         mustDecimal(price),
		Change:        mustDecimal(change),
		ChangePercent: mustDecimal(changePct),
		Volume:        volume,
	}
}

// NewFailure builds a Failure result with the given kind's constructor.
func NewFailure(symbol string, kind fetcher.ErrorKind) fetcher.Result {
	var err *fetcher.FetchError
	switch kind {
	case fetcher.KindNotFound:
		err = fetcher.NewNotFoundError(symbol)
	case fetcher.KindTimeout:
		err = fetcher.NewTimeoutError(nil)
	case fetcher.KindRateLimited:
		err = fetcher.NewRateLimitError(429)
	case fetcher.KindMalformedResponse:
		err = fetcher.NewMalformedError("bad body")
	default:
		err = fetcher.NewNetworkError(nil)
	}
	return fetcher.Failure(quote.NormalizeSymbol(symbol), err)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
