package query

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/trendproxy/internal/trends"
)

// NotFoundMarker is set on a series whose keyword matched no column.
const NotFoundMarker = "keyword not found in results"

const dateLayout = "2006-01-02"

// DataPoint is one day of interest for a keyword.
type DataPoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// KeywordSeries is the normalized output for one requested keyword.
type KeywordSeries struct {
	Keyword string      `json:"keyword"`
	Data    []DataPoint `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// Reconcile aligns table columns with the requested keywords and extracts
// one series per keyword, in request order. Keywords without a matching
// column get an empty series carrying NotFoundMarker.
func Reconcile(keywords []string, table *trends.Table) []KeywordSeries {
	var columns []string
	if table != nil {
		columns = table.Columns
	}

	out := make([]KeywordSeries, 0, len(keywords))
	for _, k := range keywords {
		col := matchColumn(k, columns)
		if col < 0 {
			out = append(out, KeywordSeries{Keyword: k, Data: []DataPoint{}, Error: NotFoundMarker})
			continue
		}
		out = append(out, KeywordSeries{Keyword: k, Data: extractSeries(table, col)})
	}
	return out
}

// matchColumn returns the index of the column for keyword: an exact label
// match first, then the first label containing keyword case-insensitively.
func matchColumn(keyword string, columns []string) int {
	for i, c := range columns {
		if c == keyword {
			return i
		}
	}
	needle := strings.ToLower(keyword)
	for i, c := range columns {
		if strings.Contains(strings.ToLower(c), needle) {
			return i
		}
	}
	return -1
}

func extractSeries(table *trends.Table, col int) []DataPoint {
	points := make([]DataPoint, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.Partial {
			continue
		}
		v, ok := coerceValue(row.Cell(col))
		if !ok {
			continue
		}
		points = append(points, DataPoint{Date: row.Time.UTC().Format(dateLayout), Value: v})
	}
	return points
}

// coerceValue converts a raw cell to a non-negative integer. Missing and
// non-numeric cells count as 0; numbers that cannot be represented (negative,
// infinite, out of range) report ok=false.
func coerceValue(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, true
	}

	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return 0, true
	}

	switch {
	case math.IsNaN(f):
		return 0, true
	case math.IsInf(f, 0), f < 0, f >= math.MaxInt:
		return 0, false
	}
	return int(f), true
}
