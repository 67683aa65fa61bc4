package symcache

import (
	"testing"
	"time"
)

func TestCache_UnknownSymbolIsNotInvalid(t *testing.T) {
	c := New(24 * time.Hour)

	if c.IsKnownInvalid("AAPL") {
		t.Error("IsKnownInvalid() = true for unknown symbol, want false")
	}
}

func TestCache_RecordInvalid(t *testing.T) {
	c := New(24 * time.Hour)

	c.Record("BADSYM", false, time.Now())

	if !c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid() = false after recording invalid, want true")
	}
}

func TestCache_RecordValid(t *testing.T) {
	c := New(24 * time.Hour)

	c.Record("AAPL", true, time.Now())

	if c.IsKnownInvalid("AAPL") {
		t.Error("IsKnownInvalid() = true for valid symbol, want false")
	}
}

func TestCache_NormalizesSymbols(t *testing.T) {
	c := New(24 * time.Hour)

	c.Record("  badsym ", false, time.Now())

	if !c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid(BADSYM) = false, want true after recording ' badsym '")
	}
	if !c.IsKnownInvalid("badsym") {
		t.Error("IsKnownInvalid(badsym) = false, want true")
	}

	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestCache_RevalidationInterval(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewWithClock(24*time.Hour, clock)

	c.Record("BADSYM", false, now)

	if !c.IsKnownInvalid("BADSYM") {
		t.Fatal("IsKnownInvalid() = false immediately after marking, want true")
	}

	// Just before the interval elapses the symbol stays skipped.
	now = now.Add(24*time.Hour - time.Second)
	if !c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid() = false just before interval, want true")
	}

	// Exactly at the interval the symbol is eligible for re-check.
	now = now.Add(time.Second)
	if c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid() = true at interval, want false (due for re-check)")
	}

	// A failed re-check restarts the window.
	c.Record("BADSYM", false, now)
	if !c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid() = false after failed re-check, want true")
	}
}

func TestCache_ZeroIntervalNeverRevalidates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewWithClock(0, clock)

	c.Record("BADSYM", false, now)

	now = now.Add(1000 * time.Hour)
	if !c.IsKnownInvalid("BADSYM") {
		t.Error("IsKnownInvalid() = false with zero interval, want true forever")
	}
}

func TestCache_Lookup(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(24 * time.Hour)

	c.Record("aapl", true, at)

	e, ok := c.Lookup("AAPL")
	if !ok {
		t.Fatal("Lookup() returned ok = false, want true")
	}
	if e.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", e.Symbol)
	}
	if !e.Valid {
		t.Error("Valid = false, want true")
	}
	if !e.LastCheckedAt.Equal(at) {
		t.Errorf("LastCheckedAt = %v, want %v", e.LastCheckedAt, at)
	}
}
