package query

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoData is returned when every attempt produced an empty result set.
var ErrNoData = errors.New("no data returned")

// errEmptyData is recorded as the last attempt error for empty result sets.
var errEmptyData = errors.New("empty data")

// RateLimitedError is returned when the provider was still rate limiting
// on the final attempt.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", maxAttempts, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// UpstreamError wraps any other provider failure that ended the query.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }
