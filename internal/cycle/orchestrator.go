package cycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quotesync/internal/fetcher"
	"quotesync/internal/quote"
	"quotesync/internal/reconcile"
)

// State of the orchestrator, observable between and during cycles.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateAborted State = "aborted"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is
// still running. The trigger is dropped, never queued.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Summary is the per-cycle report. It is produced fresh each cycle and
// always returned, even when every fetch failed.
type Summary struct {
	CycleID        string
	Requested      int
	Succeeded      int
	Failed         int
	SkippedInvalid int
	StartedAt      time.Time
	EndedAt        time.Time
	Aborted        bool
}

// SymbolSource provides the configured symbol list at the start of each
// cycle.
type SymbolSource interface {
	Symbols() []string
}

// SymbolSourceFunc is a function adapter for SymbolSource.
type SymbolSourceFunc func() []string

func (f SymbolSourceFunc) Symbols() []string { return f() }

// BatchFetcher fetches a batch of symbols, one result per symbol in
// request order.
type BatchFetcher interface {
	FetchAll(ctx context.Context, symbols []string) []fetcher.Result
}

// Reconciler applies fetch results to the state tree.
type Reconciler interface {
	Reconcile(ctx context.Context, results []fetcher.Result) (reconcile.Outcome, error)
}

// InvalidFilter reports symbols known to be invalid, for the skip
// partition at the start of a cycle.
type InvalidFilter interface {
	IsKnownInvalid(symbol string) bool
}

// Orchestrator drives one polling cycle: partition via the symbol cache,
// fetch, reconcile, summarize. A single-flight guard drops overlapping
// triggers so the cache and state tree never see two writers.
type Orchestrator struct {
	symbols SymbolSource
	filter  InvalidFilter
	fetch   BatchFetcher
	rec     Reconciler
	logger  *slog.Logger

	running sync.Mutex
	stateMu sync.RWMutex
	state   State
	now     func() time.Time
}

// New creates an Orchestrator.
func New(symbols SymbolSource, filter InvalidFilter, fetch BatchFetcher, rec Reconciler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		symbols: symbols,
		filter:  filter,
		fetch:   fetch,
		rec:     rec,
		logger:  logger,
		state:   StateIdle,
		now:     time.Now,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// RunCycle executes one complete cycle and returns its summary. A wholly
// failed cycle is not an error; only a store outage mid-reconcile aborts
// the cycle and surfaces the error alongside the partial summary.
func (o *Orchestrator) RunCycle(ctx context.Context) (Summary, error) {
	if !o.running.TryLock() {
		o.logger.Warn("cycle trigger dropped, previous cycle still running")
		return Summary{}, ErrCycleInProgress
	}
	defer o.running.Unlock()

	o.setState(StateRunning)
	defer func() {
		if o.State() == StateRunning {
			o.setState(StateIdle)
		}
	}()

	sum := Summary{
		CycleID:   uuid.NewString(),
		StartedAt: o.now(),
	}

	configured := normalize(o.symbols.Symbols())
	sum.Requested = len(configured)

	o.logger.Info("cycle started",
		"cycle_id", sum.CycleID,
		"requested", sum.Requested,
	)

	// Partition into known-invalid (skip) vs. to-fetch.
	toFetch := make([]string, 0, len(configured))
	for _, sym := range configured {
		if o.filter != nil && o.filter.IsKnownInvalid(sym) {
			sum.SkippedInvalid++
			continue
		}
		toFetch = append(toFetch, sym)
	}

	results := o.fetch.FetchAll(ctx, toFetch)

	// Quotes fetched before a shutdown signal are still applied; the
	// cycle is never torn down to a previous state.
	outcome, err := o.rec.Reconcile(context.WithoutCancel(ctx), results)
	sum.Succeeded = outcome.Succeeded
	sum.Failed = outcome.Failed
	sum.EndedAt = o.now()

	if err != nil {
		sum.Aborted = true
		o.setState(StateAborted)
		o.logger.Error("cycle aborted, state store unavailable",
			"cycle_id", sum.CycleID,
			"err", err,
			"succeeded", sum.Succeeded,
			"failed", sum.Failed,
		)
		return sum, err
	}

	o.logger.Info("cycle complete",
		"cycle_id", sum.CycleID,
		"requested", sum.Requested,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped_invalid", sum.SkippedInvalid,
		"duration", sum.EndedAt.Sub(sum.StartedAt),
	)
	return sum, nil
}

// normalize upper-cases, trims, and de-duplicates while preserving order.
func normalize(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		sym := quote.NormalizeSymbol(s)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
