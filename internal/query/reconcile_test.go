package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/trendproxy/internal/trends"
)

func TestMatchColumn(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		columns []string
		want    int
	}{
		{name: "exact", keyword: "coffee", columns: []string{"tea", "coffee"}, want: 1},
		{name: "exact beats earlier substring", keyword: "coffee", columns: []string{"coffee_brand (topic)", "coffee"}, want: 1},
		{name: "substring", keyword: "coffee", columns: []string{"tea", "coffee_brand (topic)"}, want: 1},
		{name: "case insensitive", keyword: "Coffee", columns: []string{"COFFEE BEANS"}, want: 0},
		{name: "first substring wins", keyword: "go", columns: []string{"golang", "google"}, want: 0},
		{name: "no match", keyword: "mate", columns: []string{"tea", "coffee"}, want: -1},
		{name: "no columns", keyword: "mate", columns: nil, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchColumn(tt.keyword, tt.columns); got != tt.want {
				t.Errorf("matchColumn(%q, %v) = %d, want %d", tt.keyword, tt.columns, got, tt.want)
			}
		})
	}
}

func TestReconcile_PartialRowExcludedEverywhere(t *testing.T) {
	table := &trends.Table{
		Columns: []string{"coffee", "tea"},
		Rows: []trends.Row{
			{Time: day(1), Cells: []string{"1", "2"}},
			{Time: day(2), Cells: []string{"3", "4"}, Partial: true},
		},
	}

	got := Reconcile([]string{"coffee", "tea"}, table)
	for _, s := range got {
		for _, p := range s.Data {
			if p.Date == "2024-01-02" {
				t.Errorf("series %q contains partial date %s", s.Keyword, p.Date)
			}
		}
		if len(s.Data) != 1 {
			t.Errorf("series %q has %d points, want 1", s.Keyword, len(s.Data))
		}
	}
}

func TestReconcile_MissingKeywordIsolated(t *testing.T) {
	table := &trends.Table{
		Columns: []string{"coffee"},
		Rows:    []trends.Row{{Time: day(5), Cells: []string{"42"}}},
	}

	got := Reconcile([]string{"mate", "coffee"}, table)
	want := []KeywordSeries{
		{Keyword: "mate", Data: []DataPoint{}, Error: NotFoundMarker},
		{Keyword: "coffee", Data: []DataPoint{{Date: "2024-01-05", Value: 42}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_ShortRowCountsAsMissing(t *testing.T) {
	table := &trends.Table{
		Columns: []string{"coffee", "tea"},
		Rows:    []trends.Row{{Time: day(1), Cells: []string{"7"}}},
	}

	got := Reconcile([]string{"tea"}, table)
	want := []DataPoint{{Date: "2024-01-01", Value: 0}}
	if diff := cmp.Diff(want, got[0].Data); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_NilTable(t *testing.T) {
	got := Reconcile([]string{"coffee"}, nil)
	if len(got) != 1 || got[0].Error != NotFoundMarker {
		t.Errorf("Reconcile(nil) = %+v", got)
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		cell   string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"12.9", 12, true},
		{"", 0, true},
		{"n/a", 0, true},
		{"NaN", 0, true},
		{"<1", 0, true},
		{"-3", 0, false},
		{"+Inf", 0, false},
		{"1e400", 0, false},
		{"1e12", 1000000000000, true},
		{"1e19", 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceValue(tt.cell)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("coerceValue(%q) = (%d, %v), want (%d, %v)", tt.cell, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestReconcile_SkipsUnrepresentableCells(t *testing.T) {
	table := &trends.Table{
		Columns: []string{"coffee", "tea"},
		Rows: []trends.Row{
			{Time: day(1), Cells: []string{"-1", "5"}},
			{Time: day(2), Cells: []string{"8", "6"}},
		},
	}

	got := Reconcile([]string{"coffee", "tea"}, table)
	if len(got[0].Data) != 1 || got[0].Data[0].Date != "2024-01-02" {
		t.Errorf("coffee series = %+v, want only 2024-01-02", got[0].Data)
	}
	if len(got[1].Data) != 2 {
		t.Errorf("tea series = %+v, want both days", got[1].Data)
	}
}
