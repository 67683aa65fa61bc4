package quote

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metric leaf names under a symbol's subtree in the state store.
const (
	MetricPrice         = "price"
	MetricChange        = "change"
	MetricChangePercent = "changePercent"
	MetricVolume        = "volume"
	MetricLastUpdate    = "lastUpdate"

	// MetricLastError is a diagnostic leaf written on fetch failure.
	// It is never touched by a successful reconcile.
	MetricLastError = "lastError"
)

// Metrics lists the leaves written for every successful quote, in the
// order the reconciler writes them.
var Metrics = []string{
	MetricPrice,
	MetricChange,
	MetricChangePercent,
	MetricVolume,
	MetricLastUpdate,
}

// Quote is a validated, normalized snapshot for a single symbol.
// It is only constructed from a fully-parsed API response.
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	FetchedAt     time.Time
}

// NormalizeSymbol trims whitespace and upper-cases a symbol. All cache
// lookups and state-store paths use the normalized form.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
