package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies provider failures. Individual kinds are
// recoverable at the aggregator level and fatal when a single provider
// was explicitly requested.
type FailureKind string

const (
	// KindAuth: the insurer rejected the adapter's own credentials.
	KindAuth FailureKind = "auth"
	// KindQuote: the insurer answered with a business-error payload.
	KindQuote FailureKind = "quote"
	// KindProtocol: the response shape was malformed or unexpected.
	KindProtocol FailureKind = "protocol"
	// KindUnavailable: transport failure, timeout or non-success status.
	KindUnavailable FailureKind = "unavailable"
)

// ErrUnknownProvider is returned when a caller names a provider id that is
// not configured. It is rejected at the boundary, never inside quoting.
var ErrUnknownProvider = errors.New("unknown insurance provider")

// ProviderError tags a failure with the insurer it originated from so the
// caller can explain which insurer failed.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func AuthError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindAuth, Err: err}
}

func QuoteError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindQuote, Err: err}
}

func ProtocolError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindProtocol, Err: err}
}

func UnavailableError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnavailable, Err: err}
}

// AggregateError reports that every requested provider failed. It is only
// produced when more than one provider was asked.
type AggregateError struct {
	Failures []*ProviderError
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, failure.Error())
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}
