package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/trendproxy/internal/metrics"
	"github.com/kalambet/trendproxy/internal/query"
	"github.com/kalambet/trendproxy/internal/trends"
)

// fakeProvider replays scripted results, one per call.
type fakeProvider struct {
	mu      sync.Mutex
	tables  []*trends.Table
	errs    []error
	calls   int
	lastReq trends.Query
}

func (p *fakeProvider) InterestOverTime(_ context.Context, q trends.Query) (*trends.Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.lastReq = q
	var (
		table *trends.Table
		err   error
	)
	if i < len(p.tables) {
		table = p.tables[i]
	}
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return table, err
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newTestHandler(t *testing.T, p *fakeProvider) (http.Handler, *sleepLog, *metrics.Metrics) {
	t.Helper()
	sl := &sleepLog{}
	m := metrics.New()
	svc := query.NewService(
		func() (query.Provider, error) { return p, nil },
		query.WithSleeper(sl.sleep),
		query.WithObserver(m),
	)
	return NewHandler(Deps{Querier: svc, Metrics: m}), sl, m
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func trendTable() *trends.Table {
	return &trends.Table{
		Columns: []string{"coffee_brand (topic)", "tea"},
		Rows: []trends.Row{
			{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Cells: []string{"50", "20"}},
			{Time: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Cells: []string{"", "25"}},
			{Time: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), Cells: []string{"70", "30"}, Partial: true},
		},
	}
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeProvider{})

	for _, path := range []string{"/", "/health"} {
		rr := get(t, h, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want %d", path, rr.Code, http.StatusOK)
		}
		var body map[string]string
		json.NewDecoder(rr.Body).Decode(&body)
		if body["status"] != "ok" {
			t.Errorf("%s body = %v, want status=ok", path, body)
		}
	}
}

func TestTrends_Success(t *testing.T) {
	p := &fakeProvider{tables: []*trends.Table{trendTable()}}
	h, _, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=coffee,%20tea")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got []query.KeywordSeries
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Keyword != "coffee" || got[1].Keyword != "tea" {
		t.Fatalf("series = %+v, want coffee then tea", got)
	}

	coffee := got[0].Data
	if len(coffee) != 2 {
		t.Fatalf("coffee points = %d, want 2 (partial row excluded)", len(coffee))
	}
	if coffee[0] != (query.DataPoint{Date: "2024-03-01", Value: 50}) {
		t.Errorf("coffee[0] = %+v", coffee[0])
	}
	if coffee[1] != (query.DataPoint{Date: "2024-03-02", Value: 0}) {
		t.Errorf("coffee[1] = %+v, want missing cell as 0", coffee[1])
	}
	if got[0].Error != "" {
		t.Errorf("coffee error = %q, want none", got[0].Error)
	}

	if p.lastReq.Timeframe != "today 1-m" {
		t.Errorf("timeframe = %q, want default", p.lastReq.Timeframe)
	}
}

func TestTrends_KeywordNotFound(t *testing.T) {
	p := &fakeProvider{tables: []*trends.Table{trendTable()}}
	h, _, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=tea,mate")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	raw := rr.Body.String()
	if !strings.Contains(raw, `"keyword":"mate","data":[],"error":"keyword not found in results"`) {
		t.Errorf("body missing not-found series: %s", raw)
	}

	var got []query.KeywordSeries
	json.Unmarshal([]byte(raw), &got)
	if len(got[0].Data) != 2 {
		t.Errorf("tea points = %d, want 2", len(got[0].Data))
	}
}

func TestTrends_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		cause    string
		received int
	}{
		{name: "missing", target: "/trends", cause: "missing"},
		{name: "empty", target: "/trends?keywords=", cause: "empty"},
		{name: "too many", target: "/trends?keywords=a,b,c,d,e,f", cause: "too_many", received: 6},
		{name: "no valid", target: "/trends?keywords=!!!,%23%23%23", cause: "no_valid_after_cleaning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			h, _, _ := newTestHandler(t, p)

			rr := get(t, h, tt.target)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			body := decodeError(t, rr)
			if body.Error != tt.cause {
				t.Errorf("error = %q, want %q", body.Error, tt.cause)
			}
			if body.Message == "" {
				t.Error("message should not be empty")
			}
			if body.Received != tt.received {
				t.Errorf("received = %d, want %d", body.Received, tt.received)
			}
			if p.calls != 0 {
				t.Errorf("upstream calls = %d, want 0", p.calls)
			}
		})
	}
}

func TestTrends_RateLimitedThenSuccess(t *testing.T) {
	p := &fakeProvider{
		tables: []*trends.Table{nil, nil, trendTable()},
		errs:   []error{&trends.StatusError{Code: 429}, &trends.StatusError{Code: 429}},
	}
	h, sl, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=coffee")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if len(sl.delays) != 2 || sl.delays[0] != 30*time.Second || sl.delays[1] != 60*time.Second {
		t.Errorf("delays = %v, want [30s 60s]", sl.delays)
	}
}

func TestTrends_RateLimitedExhausted(t *testing.T) {
	rl := &trends.StatusError{Code: 429}
	p := &fakeProvider{errs: []error{rl, rl, rl, rl}}
	h, _, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=coffee")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	body := decodeError(t, rr)
	if body.Error != "rate_limited" || body.RetryAfter != 60 || body.Message == "" {
		t.Errorf("body = %+v", body)
	}
	if p.calls != 3 {
		t.Errorf("upstream calls = %d, want 3", p.calls)
	}
}

func TestTrends_NoData(t *testing.T) {
	empty := &trends.Table{}
	p := &fakeProvider{tables: []*trends.Table{empty, empty, empty}}
	h, _, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=coffee")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if body := decodeError(t, rr); body.Error != "no_data" {
		t.Errorf("error = %q, want no_data", body.Error)
	}
}

func TestTrends_UpstreamError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	p := &fakeProvider{errs: []error{boom, boom, boom}}
	h, _, _ := newTestHandler(t, p)

	rr := get(t, h, "/trends?keywords=coffee")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	body := decodeError(t, rr)
	if body.Error != "upstream_error" {
		t.Errorf("error = %q, want upstream_error", body.Error)
	}
	if !strings.Contains(body.Message, "connection refused") {
		t.Errorf("message = %q, want the underlying error", body.Message)
	}
}

func TestRequestID(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeProvider{})

	rr := get(t, h, "/health")
	if id := rr.Header().Get(requestIDHeader); len(id) != 36 {
		t.Errorf("generated request id = %q, want a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if id := rr.Header().Get(requestIDHeader); id != "abc-123" {
		t.Errorf("request id = %q, want client-supplied abc-123", id)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rl := &trends.StatusError{Code: 429}
	p := &fakeProvider{errs: []error{rl, nil}, tables: []*trends.Table{nil, trendTable()}}
	h, _, _ := newTestHandler(t, p)

	get(t, h, "/trends?keywords=coffee")
	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`trendproxy_requests_total{outcome="ok"} 1`,
		`trendproxy_upstream_attempts_total{outcome="rate_limited"} 1`,
		`trendproxy_upstream_attempts_total{outcome="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNoMetricsRoute(t *testing.T) {
	svc := query.NewService(func() (query.Provider, error) { return &fakeProvider{}, nil })
	h := NewHandler(Deps{Querier: svc})

	if rr := get(t, h, "/metrics"); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&query.ValidationError{Cause: query.CauseEmpty}, "rejected"},
		{&query.RateLimitedError{RetryAfter: time.Minute}, "rate_limited"},
		{query.ErrNoData, "no_data"},
		{&query.UpstreamError{Err: errors.New("x")}, "upstream_error"},
		{errors.New("other"), "internal_error"},
	}
	for _, tt := range tests {
		if got := outcomeFor(tt.err); got != tt.want {
			t.Errorf("outcomeFor(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
