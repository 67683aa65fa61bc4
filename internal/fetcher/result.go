package fetcher

import "quotesync/internal/quote"

// Result represents the outcome of fetching one symbol. Exactly one Result
// is produced per requested symbol each cycle, in request order.
type Result struct {
	// Symbol is the normalized symbol this result is attributed to
	Symbol string

	// Quote holds the fetched data; only meaningful when Err is nil
	Quote quote.Quote

	// Err is the structured failure for this symbol, nil on success.
	// When non-nil it is always a *FetchError.
	Err error
}

// Success builds a Result for a fetched quote.
func Success(q quote.Quote) Result {
	return Result{Symbol: q.Symbol, Quote: q}
}

// Failure builds a Result for a failed symbol.
func Failure(symbol string, err error) Result {
	return Result{Symbol: symbol, Err: err}
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Kind returns the error kind for a failed result, or "" on success.
func (r Result) Kind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return KindOf(r.Err)
}
