package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient marks failures worth retrying: rate limits, gateway
	// errors, network failures and an open circuit.
	ErrTransient = errors.New("transient provider error")
	// ErrUnauthorized marks a rejected API key.
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrNotFound marks a missing provider resource.
	ErrNotFound = errors.New("provider resource not found")
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap classifies the status code.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrTransient
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
