package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kalambet/trendproxy/internal/config"
)

// clientTimeout covers the worst-case server-side backoff plus three
// upstream round trips.
const clientTimeout = 3 * time.Minute

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return &apiClient{
		baseURL:    "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)),
		httpClient: &http.Client{Timeout: clientTimeout},
	}, nil
}

func (c *apiClient) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is trendproxy running? (%w)", err)
	}
	return resp, nil
}

// serverError is the error shape returned by the trends API.
type serverError struct {
	Status     int
	Code       string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func (e *serverError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %ds)", e.RetryAfter)
	}
	return msg
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		se := &serverError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, se); err != nil || se.Code == "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}
		return se
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
