package domain

import "errors"

// Sentinel errors classifying provider failures. Wrap with fmt.Errorf("...: %w")
// to add detail; match with errors.Is.
var (
	// ErrUnavailable means a prerequisite is missing: helper binary not
	// installed, API credential absent, required config unset. Callers may
	// suppress repeated retries.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrConsentDenied means the user refused the on-device location
	// permission. Distinct from ErrUnavailable because the remedy differs.
	ErrConsentDenied = errors.New("location consent denied")

	// ErrTimeout means a bounded wait elapsed. Safe to retry next cycle.
	ErrTimeout = errors.New("timeout")

	// ErrTransport covers network failures and malformed remote responses.
	ErrTransport = errors.New("transport failure")

	// ErrAllProvidersExhausted is the terminal failure of a resolution cycle
	// and the only provider error surfaced to external callers.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Stable ErrorReason strings recorded on failed LocationResults.
const (
	ReasonTimeout   = "timeout"
	ReasonExhausted = "AllProvidersExhausted"
)

// FailureReason maps a provider error to a stable ErrorReason string.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrAllProvidersExhausted):
		return ReasonExhausted
	default:
		return err.Error()
	}
}
