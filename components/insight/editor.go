package insight

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrRowOutOfRange is returned when an edit targets a row that does not exist.
var ErrRowOutOfRange = errors.New("insight: row index out of range")

// EditField is one column of the edit form.
type EditField struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// EditForm is a snapshot of a row taken when the editor opens.
type EditForm struct {
	Index  int         `json:"index"`
	Fields []EditField `json:"fields"`
}

// EditorView lists every row of the dataset for editing.
type EditorView struct {
	Columns []string
	Rows    []TableRow
	Count   string
}

// Coercer converts submitted text back into cell values.
type Coercer struct {
	// TextColumns always keep submitted text as-is.
	TextColumns []string
}

// OpenEditForm snapshots the row at index as text. nil cells become "".
func OpenEditForm(ds Dataset, index int) (EditForm, error) {
	if index < 0 || index >= ds.Len() {
		return EditForm{}, fmt.Errorf("%w: %d", ErrRowOutOfRange, index)
	}
	row := ds.Rows[index]
	form := EditForm{Index: index, Fields: make([]EditField, len(ds.Columns))}
	for i, col := range ds.Columns {
		form.Fields[i] = EditField{Column: col, Value: textValue(row.Cell(col))}
	}
	return form, nil
}

// BuildRow converts submitted fields into a new row. Only submitted fields are
// present in the result.
func (c Coercer) BuildRow(fields []EditField) Row {
	row := make(Row, len(fields))
	for _, field := range fields {
		row[field.Column] = c.Coerce(field.Column, field.Value)
	}
	return row
}

// Coerce turns trimmed, non-empty, fully numeric text into a float64. Text with
// a leading zero and values of TextColumns stay strings.
func (c Coercer) Coerce(column, value string) any {
	for _, text := range c.TextColumns {
		if strings.EqualFold(text, column) {
			return value
		}
	}
	s := strings.TrimSpace(value)
	if s == "" || hasLeadingZero(s) {
		return value
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return value
	}
	return f
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

// ReplaceRow returns a copy of ds with the row at index replaced wholesale.
func ReplaceRow(ds Dataset, index int, row Row) (Dataset, error) {
	if index < 0 || index >= ds.Len() {
		return ds, fmt.Errorf("%w: %d", ErrRowOutOfRange, index)
	}
	rows := make([]Row, len(ds.Rows))
	copy(rows, ds.Rows)
	rows[index] = row
	return Dataset{Columns: ds.Columns, Rows: rows}, nil
}

// BuildEditorView lists every row of ds in dataset order.
func BuildEditorView(ds Dataset, f Formatter) EditorView {
	view := EditorView{
		Columns: ds.Columns,
		Rows:    make([]TableRow, len(ds.Rows)),
		Count:   fmt.Sprintf("%d records", ds.Len()),
	}
	for i, row := range ds.Rows {
		cells := make([]TableCell, len(ds.Columns))
		for c, col := range ds.Columns {
			cells[c] = TableCell{Column: col, Text: f.Cell(col, row.Cell(col))}
		}
		view.Rows[i] = TableRow{Index: i, Cells: cells}
	}
	return view
}
