package insight

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesDataset() Dataset {
	return NewDataset(
		[]string{"Order ID", "Product", "Amount", "Profit", "Date", "Region"},
		[]Row{
			{"Order ID": "A-1", "Product": "Laptop", "Amount": 1200.0, "Profit": 200.0, "Date": "2024-01-15", "Region": "North"},
			{"Order ID": "A-2", "Product": "mouse", "Amount": "25", "Profit": 5.0, "Date": "2024-02-01", "Region": "South"},
			{"Order ID": "A-3", "Product": "Monitor", "Amount": 300.0, "Profit": nil, "Date": nil, "Region": "North"},
			{"Order ID": "A-4", "Product": "Laptop", "Amount": 1000.0, "Profit": 150.0, "Date": "not a date", "Region": "East"},
		},
	)
}

func amounts(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["Amount"]
	}
	return out
}

func TestSortRowsNumericWhenBothParse(t *testing.T) {
	ds := salesDataset()
	sorted := SortRows(ds.Rows, SortState{Column: "Amount", Ascending: true})
	assert.Equal(t, []any{"25", 300.0, 1000.0, 1200.0}, amounts(sorted))
}

func TestSortRowsTextCaseInsensitive(t *testing.T) {
	ds := salesDataset()
	sorted := SortRows(ds.Rows, SortState{Column: "Product", Ascending: true})
	var names []any
	for _, r := range sorted {
		names = append(names, r["Product"])
	}
	assert.Equal(t, []any{"Laptop", "Laptop", "Monitor", "mouse"}, names)
}

func TestSortRowsNilSortsAsEmptyText(t *testing.T) {
	ds := salesDataset()
	sorted := SortRows(ds.Rows, SortState{Column: "Date", Ascending: true})
	assert.Nil(t, sorted[0]["Date"])
}

func TestSortRowsDescendingIsExactReverse(t *testing.T) {
	ds := salesDataset()
	asc := SortRows(ds.Rows, SortState{Column: "Product", Ascending: true})
	desc := SortRows(ds.Rows, SortState{Column: "Product", Ascending: false})
	reversed := slices.Clone(asc)
	slices.Reverse(reversed)
	assert.Equal(t, reversed, desc)
}

func TestSortRowsDoesNotMutateInput(t *testing.T) {
	ds := salesDataset()
	before := amounts(ds.Rows)
	_ = SortRows(ds.Rows, SortState{Column: "Amount", Ascending: false})
	assert.Equal(t, before, amounts(ds.Rows))
}

func TestSortStateToggle(t *testing.T) {
	var s SortState
	s = s.Toggle("Amount")
	assert.Equal(t, SortState{Column: "Amount", Ascending: true}, s)
	s = s.Toggle("Amount")
	assert.Equal(t, SortState{Column: "Amount", Ascending: false}, s)
	s = s.Toggle("Region")
	assert.Equal(t, SortState{Column: "Region", Ascending: true}, s)
}

func TestBuildTableCapsAtRowLimit(t *testing.T) {
	rows := make([]Row, 120)
	for i := range rows {
		rows[i] = Row{"n": float64(i)}
	}
	view := BuildTable(NewDataset([]string{"n"}, rows), SortState{}, NewFormatter(""))

	require.Len(t, view.Rows, RowLimit)
	assert.Equal(t, 120, view.Total)
	assert.Equal(t, "Showing 50 of 120 records (Sorted by: original)", view.Indicator)
}

func TestBuildTableIndicatorAndGlyphs(t *testing.T) {
	ds := salesDataset()
	view := BuildTable(ds, SortState{Column: "Amount", Ascending: false}, NewFormatter(""))

	assert.Equal(t, fmt.Sprintf("Showing %d of %d records (Sorted by: Amount)", 4, 4), view.Indicator)
	for _, h := range view.Headers {
		if h.Column == "Amount" {
			assert.True(t, h.Active)
			assert.Equal(t, "▼", h.Glyph)
		} else {
			assert.Equal(t, "↕", h.Glyph)
		}
	}
	assert.Equal(t, 0, view.Rows[0].Index, "first row should be the 1200 order")
}

func TestBuildTableFormatsCells(t *testing.T) {
	ds := salesDataset()
	view := BuildTable(ds, SortState{}, NewFormatter(""))

	cell := func(row int, col string) string {
		for _, c := range view.Rows[row].Cells {
			if c.Column == col {
				return c.Text
			}
		}
		t.Fatalf("column %s not found", col)
		return ""
	}
	assert.Equal(t, "1/15/2024", cell(0, "Date"))
	assert.Equal(t, "-", cell(2, "Date"))
	assert.Equal(t, "-", cell(2, "Profit"))
	assert.Equal(t, "not a date", cell(3, "Date"))
	assert.Equal(t, "1200", cell(0, "Amount"))
}

func TestBuildTableEmptyDataset(t *testing.T) {
	view := BuildTable(Dataset{}, SortState{}, NewFormatter(""))
	assert.Empty(t, view.Rows)
	assert.Equal(t, "Showing 0 of 0 records (Sorted by: original)", view.Indicator)
}
