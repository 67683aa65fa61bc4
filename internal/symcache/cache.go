package symcache

import (
	"sync"
	"time"

	"quotesync/internal/quote"
)

// Entry stores the last validation outcome for a single symbol. Entries
// are created on first validation and updated on every subsequent one;
// they are never deleted within a process lifetime.
type Entry struct {
	Symbol        string
	Valid         bool
	LastCheckedAt time.Time
}

// Cache is an in-memory map from symbol to last-known validity. Losing it
// (process restart) is safe: it only costs redundant validation calls.
type Cache struct {
	mu              sync.RWMutex
	entries         map[string]Entry
	revalidateAfter time.Duration
	now             func() time.Time
}

// New creates a Cache. A symbol marked invalid stays skipped until
// revalidateAfter elapses since its last check; zero disables re-checks.
func New(revalidateAfter time.Duration) *Cache {
	return NewWithClock(revalidateAfter, time.Now)
}

// NewWithClock creates a Cache with an injectable clock for tests.
func NewWithClock(revalidateAfter time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries:         make(map[string]Entry),
		revalidateAfter: revalidateAfter,
		now:             now,
	}
}

// IsKnownInvalid reports whether symbol was previously confirmed missing
// at the remote API and is not yet due for re-validation. Unknown symbols
// and valid symbols return false.
func (c *Cache) IsKnownInvalid(symbol string) bool {
	sym := quote.NormalizeSymbol(symbol)

	c.mu.RLock()
	e, ok := c.entries[sym]
	c.mu.RUnlock()

	if !ok || e.Valid {
		return false
	}
	if c.revalidateAfter > 0 && c.now().Sub(e.LastCheckedAt) >= c.revalidateAfter {
		// Due for a re-check; let the next cycle try again.
		return false
	}
	return true
}

// Record stores the outcome of a validation attempt.
func (c *Cache) Record(symbol string, valid bool, at time.Time) {
	sym := quote.NormalizeSymbol(symbol)
	if sym == "" {
		return
	}

	c.mu.Lock()
	c.entries[sym] = Entry{Symbol: sym, Valid: valid, LastCheckedAt: at}
	c.mu.Unlock()
}

// Lookup returns the cached entry for symbol, if any.
func (c *Cache) Lookup(symbol string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[quote.NormalizeSymbol(symbol)]
	return e, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
