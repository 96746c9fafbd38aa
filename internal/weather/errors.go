package weather

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures so the router can decide the next
// fallback step without string matching.
type ErrorKind int

const (
	// KindCoverage means the provider cannot serve this location. Expected;
	// the router moves on silently.
	KindCoverage ErrorKind = iota
	// KindTransport covers timeouts, network failures, non-2xx responses and
	// malformed payloads.
	KindTransport
	// KindConfig means a credential or key is missing. Routed like a
	// transport failure but reported distinctly in diagnostics.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindCoverage:
		return "coverage"
	case KindTransport:
		return "transport"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ProviderError is the typed failure every provider adapter returns.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CoverageError marks a location as outside the provider's coverage.
func CoverageError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindCoverage, Err: err}
}

// TransportError marks a network, timeout or payload failure.
func TransportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
}

// ConfigError marks a missing credential.
func ConfigError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindConfig, Err: err}
}

// ErrorKindOf extracts the kind from a provider failure, defaulting to
// transport for untyped errors.
func ErrorKindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}
