package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfiguration = fmt.Errorf("configuration error")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Upstream errors
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrUpstreamRejected    = fmt.Errorf("upstream rejected request")
	ErrUpstreamMalformed   = fmt.Errorf("upstream response malformed")
	ErrNotFound            = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// UpstreamError describes a failed call to a third-party API.
//
// It unwraps to its Kind so callers only ever need [errors.Is] against the sentinels above.
type UpstreamError struct {
	Upstream string // e.g. "spotify-api", "deezer"
	Status   int    // HTTP status, zero when no response was received
	Kind     error  // One of the Err* sentinels
	Message  string
	Err      error // Underlying cause, if any
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Upstream, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns a stable, machine-readable name for the error's kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidConfig):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, ErrUpstreamMalformed):
		return "upstream_malformed"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return "invalid_input"
	default:
		return "internal"
	}
}
