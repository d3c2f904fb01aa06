package trends

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// RequestError wraps any failure of a Client call that is not an upstream
// status: transport errors, oversized or undecodable bodies, missing widgets.
// Its text may contain the request URL and therefore the keywords.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries an HTTP 429 from the provider.
func IsRateLimited(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

// IsBadRequest reports whether err carries an HTTP 400 from the provider.
func IsBadRequest(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
