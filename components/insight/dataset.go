package insight

import (
	"maps"
	"slices"
)

// Row is a single record keyed by column name. Absent keys read as nil.
type Row map[string]any

// Dataset is the uploaded table: ordered column names and the rows in backend order.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset builds a dataset. When columns is empty they are inferred from the
// first row's keys; Go maps carry no order, so inferred columns are sorted.
// Decoders that know the wire order should pass it explicitly.
func NewDataset(columns []string, rows []Row) Dataset {
	if len(columns) == 0 && len(rows) > 0 {
		columns = slices.Sorted(maps.Keys(rows[0]))
	}
	return Dataset{
		Columns: slices.Clone(columns),
		Rows:    rows,
	}
}

// Len reports the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Empty reports whether the dataset has no rows.
func (d Dataset) Empty() bool {
	return len(d.Rows) == 0
}

// Clone deep-copies the column list and every row map.
func (d Dataset) Clone() Dataset {
	rows := make([]Row, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = maps.Clone(row)
	}
	return Dataset{
		Columns: slices.Clone(d.Columns),
		Rows:    rows,
	}
}

// Cell returns the value of column in row, or nil when absent.
func (r Row) Cell(column string) any {
	if r == nil {
		return nil
	}
	return r[column]
}
