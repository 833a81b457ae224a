package insight

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSummarySheet = "Summary"
	xlsxDataSheet    = "Data"
)

// XLSXReportWriter renders reports as spreadsheets with a Summary and a Data sheet.
type XLSXReportWriter struct{}

// NewXLSXReportWriter returns the spreadsheet writer.
func NewXLSXReportWriter() XLSXReportWriter {
	return XLSXReportWriter{}
}

// Extension implements ReportWriter.
func (XLSXReportWriter) Extension() string { return "xlsx" }

// ContentType implements ReportWriter.
func (XLSXReportWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// WriteReport implements ReportWriter.
func (XLSXReportWriter) WriteReport(w io.Writer, doc ReportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSummarySheet); err != nil {
		return fmt.Errorf("insight: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(xlsxDataSheet); err != nil {
		return fmt.Errorf("insight: add data sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("insight: header style: %w", err)
	}

	summary := [][]any{
		{doc.Title},
		{doc.Generated},
		{},
		{"Metric", "Value"},
	}
	for _, kv := range doc.Summary {
		summary = append(summary, []any{kv[0], kv[1]})
	}
	if err := writeRows(f, xlsxSummarySheet, summary); err != nil {
		return err
	}
	_ = f.SetCellStyle(xlsxSummarySheet, "A1", "A1", bold)
	_ = f.SetCellStyle(xlsxSummarySheet, "A4", "B4", bold)
	_ = f.SetColWidth(xlsxSummarySheet, "A", "B", 24)

	data := make([][]any, 0, len(doc.Values)+1)
	header := make([]any, len(doc.Columns))
	for i, col := range doc.Columns {
		header[i] = col
	}
	data = append(data, header)
	data = append(data, doc.Values...)
	if err := writeRows(f, xlsxDataSheet, data); err != nil {
		return err
	}
	if n := len(doc.Columns); n > 0 {
		last, _ := excelize.CoordinatesToCellName(n, 1)
		_ = f.SetCellStyle(xlsxDataSheet, "A1", last, bold)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("insight: write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("insight: cell name: %w", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("insight: write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
