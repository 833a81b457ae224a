package insight

import (
	"fmt"
	"slices"
	"strings"
)

// RowLimit is the number of rows the table and report detail display.
const RowLimit = 50

const (
	glyphAscending  = "▲"
	glyphDescending = "▼"
	glyphNeutral    = "↕"
)

// SortState names the active sort column. The zero value means original order.
type SortState struct {
	Column    string `json:"column,omitempty"`
	Ascending bool   `json:"ascending"`
}

// Active reports whether a column sort is applied.
func (s SortState) Active() bool {
	return s.Column != ""
}

// Toggle applies a header click: the active column flips direction and a new
// column starts ascending.
func (s SortState) Toggle(column string) SortState {
	if s.Column == column {
		return SortState{Column: column, Ascending: !s.Ascending}
	}
	return SortState{Column: column, Ascending: true}
}

// Label is the indicator text for the sort state.
func (s SortState) Label() string {
	if !s.Active() {
		return "original"
	}
	return s.Column
}

// SortRows returns a sorted copy of rows. Ascending order is stable; descending
// order is the exact reverse of the ascending result. rows is never mutated.
func SortRows(rows []Row, state SortState) []Row {
	order := sortedIndexes(rows, state)
	out := make([]Row, len(order))
	for i, idx := range order {
		out[i] = rows[idx]
	}
	return out
}

// compareCells orders numerically when both values are numbers, otherwise by
// lower-cased text with nil as "".
func compareCells(a, b any) int {
	fa, okA := numberValue(a)
	fb, okB := numberValue(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(textValue(a)), strings.ToLower(textValue(b)))
}

// TableHeader is one column header with its sort glyph.
type TableHeader struct {
	Column string
	Glyph  string
	Active bool
}

// TableCell is a formatted cell.
type TableCell struct {
	Column string
	Text   string
}

// TableRow is a formatted display row. Index points into the dataset order.
type TableRow struct {
	Index int
	Cells []TableCell
}

// TableView is the derived, display-ready table.
type TableView struct {
	Headers   []TableHeader
	Rows      []TableRow
	Shown     int
	Total     int
	Sort      SortState
	Indicator string
}

// BuildTable sorts, caps at RowLimit and formats a dataset for display.
func BuildTable(ds Dataset, state SortState, f Formatter) TableView {
	view := TableView{
		Total: ds.Len(),
		Sort:  state,
	}
	view.Headers = make([]TableHeader, len(ds.Columns))
	for i, col := range ds.Columns {
		header := TableHeader{Column: col, Glyph: glyphNeutral}
		if state.Active() && state.Column == col {
			header.Active = true
			header.Glyph = glyphDescending
			if state.Ascending {
				header.Glyph = glyphAscending
			}
		}
		view.Headers[i] = header
	}

	order := sortedIndexes(ds.Rows, state)
	limit := min(RowLimit, len(order))
	view.Rows = make([]TableRow, 0, limit)
	for _, idx := range order[:limit] {
		row := ds.Rows[idx]
		cells := make([]TableCell, len(ds.Columns))
		for c, col := range ds.Columns {
			cells[c] = TableCell{Column: col, Text: f.Cell(col, row.Cell(col))}
		}
		view.Rows = append(view.Rows, TableRow{Index: idx, Cells: cells})
	}
	view.Shown = limit
	view.Indicator = fmt.Sprintf("Showing %d of %d records (Sorted by: %s)", view.Shown, view.Total, state.Label())
	return view
}

// sortedIndexes returns dataset positions in display order using the same
// ordering rules as SortRows.
func sortedIndexes(rows []Row, state SortState) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	if !state.Active() {
		return order
	}
	col := state.Column
	slices.SortStableFunc(order, func(a, b int) int {
		return compareCells(rows[a].Cell(col), rows[b].Cell(col))
	})
	if !state.Ascending {
		slices.Reverse(order)
	}
	return order
}
