// Package query turns a raw keyword parameter into reconciled per-keyword
// time series, retrying the trend provider when it is rate limiting or
// flaky.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/trendproxy/internal/trends"
)

const (
	maxAttempts       = 3
	rateLimitBase     = 30 * time.Second
	badRequestStep    = 5 * time.Second
	defaultTimeframe  = "today 1-m"
	defaultRetryAfter = 60 * time.Second
)

// Provider fetches interest-over-time tables.
type Provider interface {
	InterestOverTime(ctx context.Context, q trends.Query) (*trends.Table, error)
}

// ProviderFactory builds a fresh Provider. It is called once per query so
// no session state is shared between callers.
type ProviderFactory func() (Provider, error)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Observer is notified of every upstream attempt outcome.
type Observer interface {
	ObserveAttempt(outcome string)
}

// Service validates keyword lists, queries the provider with retries and
// reconciles the result.
type Service struct {
	newProvider ProviderFactory
	timeframe   string
	geo         string
	retryAfter  time.Duration
	sleep       Sleeper
	observer    Observer
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeframe sets the provider timeframe string.
func WithTimeframe(tf string) Option {
	return func(s *Service) {
		if tf != "" {
			s.timeframe = tf
		}
	}
}

// WithGeo restricts queries to a region code ("" is worldwide).
func WithGeo(geo string) Option {
	return func(s *Service) { s.geo = geo }
}

// WithRetryAfter sets the hint returned to callers when rate limited.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithSleeper replaces the backoff sleep (for testing).
func WithSleeper(fn Sleeper) Option {
	return func(s *Service) { s.sleep = fn }
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service drawing providers from newProvider.
func NewService(newProvider ProviderFactory, opts ...Option) *Service {
	s := &Service{
		newProvider: newProvider,
		timeframe:   defaultTimeframe,
		retryAfter:  defaultRetryAfter,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query validates raw, fetches the keywords' interest over time and returns
// one series per keyword in request order.
func (s *Service) Query(ctx context.Context, raw string, present bool) ([]KeywordSeries, error) {
	keywords, err := ParseKeywords(raw, present)
	if err != nil {
		return nil, err
	}

	table, err := s.Fetch(ctx, keywords)
	if err != nil {
		return nil, err
	}

	return Reconcile(keywords, table), nil
}

// Fetch queries the provider for keywords, making at most three attempts.
// Rate-limited attempts back off 30s, 60s; bad requests back off 5s, 10s;
// empty results and other errors are retried immediately.
func (s *Service) Fetch(ctx context.Context, keywords []string) (*trends.Table, error) {
	provider, err := s.newProvider()
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("creating provider: %w", err)}
	}

	q := trends.Query{Keywords: keywords, Timeframe: s.timeframe, Geo: s.geo}

	var lastErr error
	for attempt := range maxAttempts {
		final := attempt == maxAttempts-1

		table, err := provider.InterestOverTime(ctx, q)
		kind := classify(table, err)
		s.observe(kind)

		var delay time.Duration
		switch kind {
		case attemptSuccess:
			return table, nil

		case attemptEmpty:
			lastErr = errEmptyData
			if final {
				return nil, ErrNoData
			}

		case attemptRateLimited:
			lastErr = err
			if final {
				return nil, &RateLimitedError{RetryAfter: s.retryAfter, Err: err}
			}
			delay = rateLimitBase << attempt

		case attemptBadRequest:
			lastErr = err
			if final {
				return nil, &UpstreamError{Err: err}
			}
			delay = badRequestStep * time.Duration(attempt+1)

		default:
			lastErr = err
			if final {
				return nil, &UpstreamError{Err: err}
			}
		}

		s.logger.Warn("trend query attempt failed",
			"attempt", attempt+1,
			"outcome", kind.String(),
			"keywords", strings.Join(keywords, ","),
			"backoff", delay,
			"error", lastErr,
		)

		if delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return nil, &UpstreamError{Err: err}
			}
		} else if err := ctx.Err(); err != nil {
			return nil, &UpstreamError{Err: err}
		}
	}

	return nil, &UpstreamError{Err: lastErr}
}

func (s *Service) observe(kind attemptKind) {
	if s.observer != nil {
		s.observer.ObserveAttempt(kind.String())
	}
}

type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptEmpty
	attemptRateLimited
	attemptBadRequest
	attemptOther
)

func (k attemptKind) String() string {
	switch k {
	case attemptSuccess:
		return "success"
	case attemptEmpty:
		return "empty"
	case attemptRateLimited:
		return "rate_limited"
	case attemptBadRequest:
		return "bad_request"
	default:
		return "error"
	}
}

// classify maps one attempt's result to its retry kind. Structured status
// errors are preferred. Errors from providers that report no status code fall
// back to looking for the code in the message; known transport and client
// errors never do, since their text carries the request URL and keywords.
func classify(table *trends.Table, err error) attemptKind {
	if err == nil {
		if table.Empty() {
			return attemptEmpty
		}
		return attemptSuccess
	}

	var se *trends.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests:
			return attemptRateLimited
		case http.StatusBadRequest:
			return attemptBadRequest
		default:
			return attemptOther
		}
	}

	var (
		re *trends.RequestError
		ue *url.Error
		ne net.Error
	)
	if errors.As(err, &re) || errors.As(err, &ue) || errors.As(err, &ne) {
		return attemptOther
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return attemptRateLimited
	case strings.Contains(msg, "400"):
		return attemptBadRequest
	default:
		return attemptOther
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
