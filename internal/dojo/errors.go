package dojo

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// TimeoutError reports that an upstream call exceeded its latency bound.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return shared.ErrTimeout }

// AuthError reports a 401-equivalent response. Callers must clear
// session-dependent state and require re-login.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream auth failure (status %d): %s", e.StatusCode, e.Detail)
}

func (e *AuthError) Unwrap() error { return shared.ErrAuthRequired }

// ConflictError reports a preference version mismatch. It carries the
// authoritative server state so callers can recover without another fetch.
type ConflictError struct {
	Latest models.Preferences
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("preferences version conflict, server at v%d", e.Latest.Version)
}

func (e *ConflictError) Unwrap() error { return shared.ErrConflict }

// NetworkError reports a transport-level failure. Transient by taxonomy:
// callers fall back to cached state when one exists.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return shared.ErrServiceUnavailable }

// StatusError reports a non-2xx upstream response outside the dedicated
// auth/conflict classifications.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return shared.ErrAPIRequest }

// statusIs reports whether err is a StatusError with one of the given codes.
// Used to tolerate optional endpoints.
func statusIs(err error, codes ...int) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	for _, code := range codes {
		if statusErr.StatusCode == code {
			return true
		}
	}
	return false
}

// classifyTransportErr wraps a failed http.Client.Do error as either a
// TimeoutError or a NetworkError.
func classifyTransportErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return &NetworkError{Op: op, Err: err}
}
