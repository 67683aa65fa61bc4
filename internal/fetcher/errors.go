package fetcher

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of error that occurred during a fetch
// or reconcile operation.
type ErrorKind string

const (
	// KindTimeout indicates the request exceeded its per-request timeout
	KindTimeout ErrorKind = "timeout"
	// KindNetwork indicates a network-level error (connection refused, DNS,
	// 5xx from the remote) that may succeed on retry
	KindNetwork ErrorKind = "network"
	// KindRateLimited indicates the request was rejected due to rate
	// limiting (HTTP 429); it triggers an API-wide cool-down
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotFound indicates the symbol does not exist at the remote API
	KindNotFound ErrorKind = "not_found"
	// KindMalformedResponse indicates the response was received but violated
	// the expected data contract
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindStoreUnavailable indicates the persistent state store could not be
	// reached; fatal for the remainder of the cycle
	KindStoreUnavailable ErrorKind = "store_unavailable"
	// KindConfigInvalid indicates configuration validation failed; fatal
	// before any fetch is issued
	KindConfigInvalid ErrorKind = "config_invalid"
)

// FetchError is a structured error attributed to exactly one kind.
type FetchError struct {
	Kind       ErrorKind
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Kind:      KindTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Kind:      KindNetwork,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewServerError creates a network-kind error for a 5xx response
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Kind:       KindNetwork,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "server returned an error",
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int) *FetchError {
	return &FetchError{
		Kind:       KindRateLimited,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "rate limit exceeded",
	}
}

// NewNotFoundError creates a not-found error for a symbol. Not retryable:
// the symbol is recorded as invalid in the symbol cache instead.
func NewNotFoundError(symbol string) *FetchError {
	return &FetchError{
		Kind:       KindNotFound,
		Retryable:  false,
		StatusCode: 404,
		Message:    fmt.Sprintf("symbol %q not found", symbol),
	}
}

// NewMalformedError creates a malformed-response error
func NewMalformedError(message string) *FetchError {
	return &FetchError{
		Kind:      KindMalformedResponse,
		Retryable: false,
		Message:   message,
	}
}

// NewStoreUnavailableError creates a store-unavailable error
func NewStoreUnavailableError(cause error) *FetchError {
	return &FetchError{
		Kind:      KindStoreUnavailable,
		Retryable: false,
		Message:   "state store unavailable",
		Cause:     cause,
	}
}

// NewConfigError creates a config-invalid error
func NewConfigError(message string) *FetchError {
	return &FetchError{
		Kind:      KindConfigInvalid,
		Retryable: false,
		Message:   message,
	}
}

// ClassifyHTTPStatus classifies a non-2xx HTTP status code into an
// appropriate FetchError for the given symbol.
func ClassifyHTTPStatus(statusCode int, symbol string) *FetchError {
	switch {
	case statusCode == 404:
		return NewNotFoundError(symbol)
	case statusCode == 429:
		return NewRateLimitError(statusCode)
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		// Other 4xx means our request broke the API contract.
		return &FetchError{
			Kind:       KindMalformedResponse,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("client error: HTTP %d", statusCode),
		}
	default:
		return &FetchError{
			Kind:       KindNetwork,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// KindOf returns the ErrorKind of err, or KindNetwork if err is not a
// FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether err is a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}
