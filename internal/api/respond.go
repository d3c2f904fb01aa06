package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kalambet/trendproxy/internal/query"
)

// errorBody is the only error shape returned to clients.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Received   int    `json:"received,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	logger := LoggerFrom(r.Context())
	code, body := errorResponse(err)

	if code == http.StatusBadRequest {
		logger.Warn("trend query rejected", "cause", body.Error, "error", err)
	} else {
		logger.Error("trend query failed", "status", code, "error", err)
	}

	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	writeJSON(w, code, body)
}

func errorResponse(err error) (int, errorBody) {
	var (
		ve *query.ValidationError
		rl *query.RateLimitedError
		ue *query.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{
			Error:    string(ve.Cause),
			Message:  ve.Message(),
			Received: ve.Received,
		}
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, errorBody{
			Error:      "rate_limited",
			Message:    "the trend provider is rate limiting requests, retry later",
			RetryAfter: max(1, int(rl.RetryAfter.Seconds())),
		}
	case errors.Is(err, query.ErrNoData):
		return http.StatusNotFound, errorBody{
			Error:   "no_data",
			Message: "no data returned for the requested keywords",
		}
	case errors.As(err, &ue):
		return http.StatusInternalServerError, errorBody{
			Error:   "upstream_error",
			Message: ue.Err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorBody{
			Error:   "internal_error",
			Message: err.Error(),
		}
	}
}

// outcomeFor labels a query result for metrics.
func outcomeFor(err error) string {
	var (
		ve *query.ValidationError
		rl *query.RateLimitedError
		ue *query.UpstreamError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "rejected"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.Is(err, query.ErrNoData):
		return "no_data"
	case errors.As(err, &ue):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
