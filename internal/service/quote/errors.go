package quote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure for retry and fallback decisions.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindRateLimit     ErrorKind = "rate_limit"
	KindNetwork       ErrorKind = "network_error"
	KindHTTP          ErrorKind = "http_error"
	KindProvider      ErrorKind = "provider_error"
	KindInvalidSymbol ErrorKind = "invalid_symbol"
	KindUnavailable   ErrorKind = "unavailable"
)

// FetchError is the error type flowing through the fetch chain.
type FetchError struct {
	Kind     ErrorKind
	Provider string
	Symbol   string
	Status   int // HTTP status when Kind is http_error or rate_limit
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Provider, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Provider, e.Symbol)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the same provider should be attempted again.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindNetwork:
		return true
	case KindHTTP:
		return e.Status == 429 || e.Status >= 500
	default:
		return false
	}
}

// FallbackEligible reports whether the chain may cascade to the next producer.
// Invalid symbols are terminal: no fallback can resolve them meaningfully.
func (e *FetchError) FallbackEligible() bool {
	return e.Kind != KindInvalidSymbol
}

// NewFetchError builds a classified error.
func NewFetchError(kind ErrorKind, provider, symbol string, err error) *FetchError {
	return &FetchError{Kind: kind, Provider: provider, Symbol: symbol, Err: err}
}

// KindOf extracts the error kind, defaulting to provider_error for foreign errors.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindProvider
}

// IsInvalidSymbol reports whether err is the terminal invalid-symbol classification.
func IsInvalidSymbol(err error) bool {
	return KindOf(err) == KindInvalidSymbol
}
