// Package resilience classifies provider failures and retries the ones worth
// retrying.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (429, 5xx, timeouts,
// connection failures).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ConfigError marks a provider as unusable for this run (missing credentials,
// bad endpoint). Never retried; callers downgrade to the next provider.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string { return e.Provider + ": " + e.Reason }

// NewConfigError reports a provider configuration problem.
func NewConfigError(provider, reason string) *ConfigError {
	return &ConfigError{Provider: provider, Reason: reason}
}

// EmptyResultError marks an attempt that completed but found nothing usable
// (no features, malformed coordinates). Terminal for that attempt, not
// retried.
type EmptyResultError struct {
	Provider string
	Query    string
}

func (e *EmptyResultError) Error() string {
	return e.Provider + ": no result for " + e.Query
}

// NewEmptyResultError reports a completed lookup with nothing usable in it.
func NewEmptyResultError(provider, query string) *EmptyResultError {
	return &EmptyResultError{Provider: provider, Query: query}
}

// IsConfigError reports whether the chain contains a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsEmptyResult reports whether the chain contains an EmptyResultError.
func IsEmptyResult(err error) bool {
	var ee *EmptyResultError
	return errors.As(err, &ee)
}

// IsTransient reports whether the error (or any error in its chain) is a
// TransientError, or matches common transient network patterns. Config and
// empty-result errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsConfigError(err) || IsEmptyResult(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped client errors that only surface as strings.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side condition that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
