package sentry

import (
	"errors"
	"fmt"
)

// RequestError is a non-retryable or retry-exhausted API failure.
// The stream-sync caller decides whether it is fatal or recoverable.
type RequestError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("sentry: request failed with status %d (URL: %s)", e.StatusCode, e.URL)
}

// MalformedResponseError indicates an unexpected payload shape, e.g. a
// page body that is not a JSON list.
type MalformedResponseError struct {
	URL string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("sentry: malformed response from %s: %v", e.URL, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// retryableStatuses are the transient status codes the client retries
// internally. Anything else fails fast.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsRetryableStatus reports whether a status code is transient.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == 404
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == 401
}

// IsMalformed checks if the error is a malformed-response failure.
func IsMalformed(err error) bool {
	var malErr *MalformedResponseError
	return errors.As(err, &malErr)
}
