package trends

import (
	"encoding/json"
	"time"
)

// Query describes a single interest-over-time request.
type Query struct {
	Keywords  []string
	Timeframe string
	Geo       string
	Category  int
}

// Table is the interest-over-time result for one query. Columns are the
// labels the provider assigned to each compared term; they may differ from
// the requested keywords.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row is one sample period. Cells is parallel to Table.Columns; an empty
// cell means the provider had no value for that column.
type Row struct {
	Time    time.Time
	Cells   []string
	Partial bool
}

// Empty reports whether the table carries no usable data.
func (t *Table) Empty() bool {
	return t == nil || len(t.Columns) == 0 || len(t.Rows) == 0
}

// Cell returns the raw cell for column col, or "" when the row is short.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// --- wire types ---

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Time    string `json:"time"`
	Geo     string `json:"geo"`
}

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

// widgetRequest is the subset of the TIMESERIES widget request needed to
// label the returned columns.
type widgetRequest struct {
	ComparisonItem []struct {
		ComplexKeywordsRestriction struct {
			Keyword []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"keyword"`
		} `json:"complexKeywordsRestriction"`
	} `json:"comparisonItem"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []timelinePoint `json:"timelineData"`
	} `json:"default"`
}

type timelinePoint struct {
	Time      string        `json:"time"`
	Value     []json.Number `json:"value"`
	HasData   []bool        `json:"hasData"`
	IsPartial bool          `json:"isPartial"`
}
