package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBaseURL = "https://trends.google.com"

	connectTimeout = 10 * time.Second
	readTimeout    = 25 * time.Second
	maxBodySize    = 5 << 20 // 5MB

	exploreWidgetID = "TIMESERIES"
)

// xssiPrefix guards every JSON body served by the trends API.
var xssiPrefix = []byte(")]}'")

// Client talks to the Google Trends web API. A Client holds session cookies
// and must not be shared across unrelated queries.
type Client struct {
	baseURL    string
	hl         string
	tz         int
	httpClient *http.Client
	primed     bool
}

// Options configures a Client.
type Options struct {
	BaseURL string
	HL      string // host language, e.g. "en-US"
	TZ      int    // timezone offset in minutes
	// Transport overrides the default dialer/timeout transport (for testing).
	Transport http.RoundTripper
}

// New creates a Client with a fresh cookie jar.
func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: readTimeout,
		}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hl := opts.HL
	if hl == "" {
		hl = "en-US"
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hl:      hl,
		tz:      opts.TZ,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
	}, nil
}

// InterestOverTime builds the comparison payload for q and fetches the
// interest-over-time table for it.
func (c *Client) InterestOverTime(ctx context.Context, q Query) (*Table, error) {
	if len(q.Keywords) == 0 {
		return nil, &RequestError{Err: errors.New("trends: no keywords")}
	}

	table, err := c.interestOverTime(ctx, q)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &RequestError{Err: err}
	}
	return table, nil
}

func (c *Client) interestOverTime(ctx context.Context, q Query) (*Table, error) {
	if err := c.prime(ctx); err != nil {
		return nil, err
	}

	w, err := c.explore(ctx, q)
	if err != nil {
		return nil, err
	}

	return c.multiline(ctx, w, q.Keywords)
}

// prime fetches the landing page once so the jar holds the session cookie
// the API endpoints expect.
func (c *Client) prime(ctx context.Context) error {
	if c.primed {
		return nil
	}
	params := url.Values{}
	params.Set("geo", geoFromHL(c.hl))
	if _, err := c.get(ctx, "/", params); err != nil {
		return fmt.Errorf("trends: fetching session cookie: %w", err)
	}
	c.primed = true
	return nil
}

func (c *Client) explore(ctx context.Context, q Query) (*widget, error) {
	items := make([]comparisonItem, len(q.Keywords))
	for i, k := range q.Keywords {
		items[i] = comparisonItem{Keyword: k, Time: q.Timeframe, Geo: q.Geo}
	}
	req, err := json.Marshal(exploreRequest{ComparisonItem: items, Category: q.Category})
	if err != nil {
		return nil, fmt.Errorf("marshaling explore request: %w", err)
	}

	params := c.baseParams()
	params.Set("req", string(req))

	body, err := c.get(ctx, "/trends/api/explore", params)
	if err != nil {
		return nil, fmt.Errorf("trends: explore: %w", err)
	}

	var resp exploreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("trends: decoding explore response: %w", err)
	}

	for i := range resp.Widgets {
		if resp.Widgets[i].ID == exploreWidgetID {
			return &resp.Widgets[i], nil
		}
	}
	return nil, fmt.Errorf("trends: explore response has no %s widget", exploreWidgetID)
}

func (c *Client) multiline(ctx context.Context, w *widget, keywords []string) (*Table, error) {
	params := c.baseParams()
	params.Set("req", string(w.Request))
	params.Set("token", w.Token)

	body, err := c.get(ctx, "/trends/api/widgetdata/multiline", params)
	if err != nil {
		return nil, fmt.Errorf("trends: interest over time: %w", err)
	}

	var resp multilineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("trends: decoding interest over time: %w", err)
	}

	return buildTable(widgetLabels(w.Request, keywords), resp.Default.TimelineData)
}

func buildTable(columns []string, points []timelinePoint) (*Table, error) {
	t := &Table{Columns: columns, Rows: make([]Row, 0, len(points))}
	if len(points) == 0 {
		return t, nil
	}

	for _, p := range points {
		sec, err := strconv.ParseInt(p.Time, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("trends: invalid timeline timestamp %q: %w", p.Time, err)
		}
		cells := make([]string, len(columns))
		for i := range cells {
			if i >= len(p.Value) {
				break
			}
			if i < len(p.HasData) && !p.HasData[i] {
				continue
			}
			cells[i] = p.Value[i].String()
		}
		t.Rows = append(t.Rows, Row{
			Time:    time.Unix(sec, 0).UTC(),
			Cells:   cells,
			Partial: p.IsPartial,
		})
	}
	return t, nil
}

// widgetLabels returns the column labels the provider uses for the compared
// terms, falling back to the requested keywords when the widget request does
// not list them.
func widgetLabels(raw json.RawMessage, keywords []string) []string {
	var wr widgetRequest
	if err := json.Unmarshal(raw, &wr); err != nil || len(wr.ComparisonItem) != len(keywords) {
		return append([]string(nil), keywords...)
	}

	labels := make([]string, len(wr.ComparisonItem))
	for i, item := range wr.ComparisonItem {
		var parts []string
		for _, k := range item.ComplexKeywordsRestriction.Keyword {
			if k.Value != "" {
				parts = append(parts, k.Value)
			}
		}
		if len(parts) == 0 {
			labels[i] = keywords[i]
			continue
		}
		labels[i] = strings.Join(parts, " + ")
	}
	return labels
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("hl", c.hl)
	params.Set("tz", strconv.Itoa(c.tz))
	return params
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept-Language", c.hl)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}

	return stripXSSI(body), nil
}

func stripXSSI(body []byte) []byte {
	body = bytes.TrimLeft(body, " \t\r\n")
	if !bytes.HasPrefix(body, xssiPrefix) {
		return body
	}
	return bytes.TrimLeft(body[len(xssiPrefix):], ", \t\r\n")
}

func geoFromHL(hl string) string {
	if len(hl) < 2 {
		return "US"
	}
	return strings.ToUpper(hl[len(hl)-2:])
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
