package backend

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/xuri/excelize/v2"
)

// NormalizedColumns is the row shape the backend returns after an upload.
var NormalizedColumns = []string{"Order ID", "Product", "Category", "Amount", "Profit", "Date", "Region", "Visibility"}

// columnCandidates lists the accepted source headers per normalized field, in
// priority order.
var columnCandidates = []struct {
	field      string
	candidates []string
}{
	{"order_id", []string{"Order ID", "ID Pedido", "ID", "Orden"}},
	{"product", []string{"Product Name", "Product", "Producto", "Nombre Producto"}},
	{"category", []string{"Category", "Categoría", "Categoria", "Departamento"}},
	{"amount", []string{"Sales", "Amount", "Ventas", "Total", "Importe"}},
	{"profit", []string{"Profit", "Ganancia", "Margen", "Utilidad"}},
	{"date", []string{"Order Date", "Date", "Fecha", "Fecha Pedido"}},
	{"region", []string{"Region", "Región", "Zona", "Area"}},
}

var mockDateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01-02-06",
	"2006/01/02",
	"Jan 2, 2006",
}

// readSheet parses a csv or xlsx upload into a header row and data rows.
func readSheet(name string, r io.Reader) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, err
		}
		reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
		reader.FieldsPerRecord = -1
		records, err := reader.ReadAll()
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		return splitHeader(records)
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("xlsx has no sheets")
		}
		records, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, nil, fmt.Errorf("read xlsx: %w", err)
		}
		return splitHeader(records)
	default:
		return nil, nil, errUnsupportedFormat
	}
}

func splitHeader(records [][]string) ([]string, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}
	return records[0], records[1:], nil
}

// mapColumns resolves each normalized field to a header index, or -1.
func mapColumns(header []string) map[string]int {
	out := make(map[string]int, len(columnCandidates))
	for _, cc := range columnCandidates {
		out[cc.field] = -1
	candidates:
		for _, candidate := range cc.candidates {
			want := strings.ToLower(strings.TrimSpace(candidate))
			for i, h := range header {
				if strings.ToLower(strings.TrimSpace(h)) == want {
					out[cc.field] = i
					break candidates
				}
			}
		}
	}
	return out
}

// normalizeRows converts source records into the normalized row shape. Rows
// whose amount, profit or date cannot be parsed are skipped.
func normalizeRows(header []string, records [][]string, visibility string, now time.Time) []insight.Row {
	cols := mapColumns(header)
	cell := func(record []string, field string) (string, bool) {
		i := cols[field]
		if i < 0 {
			return "", false
		}
		if i >= len(record) {
			return "", true
		}
		return strings.TrimSpace(record[i]), true
	}

	rows := make([]insight.Row, 0, len(records))
	for n, record := range records {
		row := insight.Row{
			"Order ID":   fmt.Sprintf("ORD-%d", n),
			"Product":    "Desconocido",
			"Category":   "General",
			"Amount":     0.0,
			"Profit":     0.0,
			"Date":       now.Format(time.DateOnly),
			"Region":     "Global",
			"Visibility": visibility,
		}
		if v, ok := cell(record, "order_id"); ok {
			row["Order ID"] = v
		}
		if v, ok := cell(record, "product"); ok {
			row["Product"] = v
		}
		if v, ok := cell(record, "category"); ok {
			row["Category"] = v
		}
		if v, ok := cell(record, "region"); ok {
			row["Region"] = v
		}
		if v, ok := cell(record, "amount"); ok {
			f, err := parseAmount(v)
			if err != nil {
				continue
			}
			row["Amount"] = f
		}
		if v, ok := cell(record, "profit"); ok {
			f, err := parseAmount(v)
			if err != nil {
				continue
			}
			row["Profit"] = f
		}
		if v, ok := cell(record, "date"); ok {
			t, err := parseMockDate(v)
			if err != nil {
				continue
			}
			row["Date"] = t.Format(time.DateOnly)
		}
		rows = append(rows, row)
	}
	return rows
}

func parseAmount(s string) (float64, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	return strconv.ParseFloat(s, 64)
}

func parseMockDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range mockDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
