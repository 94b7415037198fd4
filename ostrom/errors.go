package ostrom

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError covers bad or expired credentials and token refresh
// failures. Not retryable without user action.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ostrom: authentication failed with status %d", e.Status)
	}
	return fmt.Sprintf("ostrom: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ApiError is a request the server rejected. 4xx are not retryable,
// except 429 which the next scheduled attempt may clear.
type ApiError struct {
	Status int
	Body   string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("ostrom: api error %d: %s", e.Status, e.Body)
}

func (e *ApiError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests
}

// TransportError is a network failure, timeout or server-side (5xx)
// error. Always retryable by the next schedule tick.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ostrom: server error %d", e.Status)
	}
	return fmt.Sprintf("ostrom: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt could succeed without
// user intervention.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *ApiError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
