package cyberauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrVerificationFailed is returned when the service rejects a signed challenge
	ErrVerificationFailed = errors.New("verification failed")

	// ErrUnauthorized is returned when a token or service key is missing or rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest is returned when the service cannot parse the request
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable is returned when the service's challenge store is down
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-success response from the auth service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cyberauth: status %d", e.StatusCode)
	}
	return fmt.Sprintf("cyberauth: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto one of the package sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusOK:
		return ErrVerificationFailed
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}
