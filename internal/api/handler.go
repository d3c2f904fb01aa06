package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/trendproxy/internal/metrics"
	"github.com/kalambet/trendproxy/internal/query"
)

// Querier runs a trend query for a raw keyword parameter.
type Querier interface {
	Query(ctx context.Context, raw string, present bool) ([]query.KeywordSeries, error)
}

// Deps holds the handler's collaborators. Metrics may be nil.
type Deps struct {
	Querier Querier
	Metrics *metrics.Metrics
}

// NewHandler returns the HTTP API:
//
//	GET /            liveness
//	GET /health      liveness
//	GET /trends      interest over time for ?keywords=a,b
//	GET /metrics     Prometheus exposition (when Metrics is set)
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", handleHealth)
	r.Get("/health", handleHealth)
	r.Get("/trends", handleTrends(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleTrends(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		params := r.URL.Query()

		series, err := deps.Querier.Query(r.Context(), params.Get("keywords"), params.Has("keywords"))
		deps.Metrics.ObserveRequest(outcomeFor(err), time.Since(start))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, series)
	}
}
