package garo

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream API failures so callers can pick the
// right fallback without inspecting HTTP status codes themselves.
type ErrorKind string

const (
	// ErrUnauthorized means the credentials are invalid for the whole
	// account, not just one resource.
	ErrUnauthorized ErrorKind = "unauthorized"
	// ErrNotFound means the addressed resource does not exist.
	ErrNotFound ErrorKind = "not_found"
	// ErrServerError covers upstream 5xx responses.
	ErrServerError ErrorKind = "server_error"
	// ErrRateLimited means the upstream asked us to back off.
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrMalformed means the response arrived but could not be decoded.
	ErrMalformed ErrorKind = "malformed"
)

type APIError struct {
	Kind    ErrorKind
	Status  int
	Op      string
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("garo: %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("garo: %s: %s: %s", e.Op, e.Kind, e.Message)
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 404:
		return ErrNotFound
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrServerError
	default:
		return ErrMalformed
	}
}
