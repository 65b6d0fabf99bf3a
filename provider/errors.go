package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/llmrelay/core"
)

// FailureKind classifies why a provider invocation produced no usable result.
// The dispatcher treats every kind as fall-through, but the distinction must
// survive into logs so operators can tell throttling from real faults.
type FailureKind int

const (
	// FailureUnavailable means the provider never initialized: no credential
	// was supplied or client construction failed. Detected at registry build
	// time, never retried within a call.
	FailureUnavailable FailureKind = iota
	// FailureRateLimited means the vendor rejected the request due to quota
	// or throttling (HTTP 429 or an equivalent rate-limit marker).
	FailureRateLimited
	// FailureOther covers everything else: auth errors, malformed requests,
	// network faults and timeouts.
	FailureOther
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureUnavailable:
		return "unavailable"
	case FailureRateLimited:
		return "rate_limited"
	case FailureOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is the classified failure every adapter returns from Invoke. It
// wraps the underlying cause for errors.Is / errors.As inspection.
type Error struct {
	Provider core.ProviderID
	Kind     FailureKind
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified provider error.
func NewError(id core.ProviderID, kind FailureKind, cause error) *Error {
	return &Error{Provider: id, Kind: kind, Err: cause}
}

// KindOf extracts the failure classification from an error, defaulting to
// FailureOther for anything that is not a *Error.
func KindOf(err error) FailureKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureOther
}

// rateLimitMarkers are the substrings that identify vendor throttling when
// no structured status code is available. Matches the markers the vendors
// put into their error payloads ("rate_limit_error", "429", ...).
var rateLimitMarkers = []string{"rate_limit", "rate limit", "429", "too many requests"}

// IsRateLimitSignal reports whether the error text carries a rate-limit
// marker. Adapters with access to a structured status code should prefer
// that and use this only as a fallback.
func IsRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify converts an arbitrary invocation error into a *Error. Existing
// classifications pass through untouched; context cancellation and deadline
// expiry map to FailureOther per the timeout policy; everything else is
// sniffed for a rate-limit marker.
func Classify(id core.ProviderID, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(id, FailureOther, err)
	}
	if IsRateLimitSignal(err) {
		return NewError(id, FailureRateLimited, err)
	}
	return NewError(id, FailureOther, err)
}
