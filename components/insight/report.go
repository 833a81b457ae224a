package insight

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/ettle/strcase"
)

// ErrEmptyDataset signals that an operation needs at least one row. Exports
// treat it as a silent no-op.
var ErrEmptyDataset = errors.New("insight: dataset is empty")

// ReportOptions configure the exported document.
type ReportOptions struct {
	Title string
	Brand string
}

// DefaultReportOptions returns the stock title and footer brand.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		Title: "Executive Sales Report",
		Brand: "DataInsight System",
	}
}

// ReportDocument is the layout-independent content of an export.
type ReportDocument struct {
	Title        string
	Generated    string
	GeneratedAt  time.Time
	SummaryTitle string
	Summary      [][2]string
	DetailTitle  string
	Columns      []string
	Rows         [][]string
	// Values holds every dataset row with its raw cell values, uncapped.
	Values [][]any
	Brand  string
}

// BuildReport assembles the report content. Detail rows follow dataset order,
// not the table's sort, and are capped at RowLimit.
func BuildReport(ds Dataset, kpis KPIDisplay, f Formatter, opts ReportOptions, now time.Time) (ReportDocument, error) {
	if ds.Empty() {
		return ReportDocument{}, ErrEmptyDataset
	}
	defaults := DefaultReportOptions()
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = defaults.Title
	}
	if strings.TrimSpace(opts.Brand) == "" {
		opts.Brand = defaults.Brand
	}

	doc := ReportDocument{
		Title:        opts.Title,
		GeneratedAt:  now,
		Generated:    "Generated on " + now.Format(f.layout()) + " at " + now.Format("3:04:05 PM"),
		SummaryTitle: "Executive Summary",
		Summary: [][2]string{
			{"Total Sales", kpis.TotalSales},
			{"Total Profit", kpis.TotalProfit},
			{"Top Product", kpis.TopProduct},
			{"Top Region", kpis.TopRegion},
		},
		DetailTitle: "Transaction Detail (Top 50)",
		Columns:     append([]string(nil), ds.Columns...),
		Brand:       opts.Brand,
	}
	limit := min(RowLimit, ds.Len())
	doc.Rows = make([][]string, limit)
	for i, row := range ds.Rows[:limit] {
		cells := make([]string, len(ds.Columns))
		for c, col := range ds.Columns {
			cells[c] = f.Cell(col, row.Cell(col))
		}
		doc.Rows[i] = cells
	}
	doc.Values = make([][]any, ds.Len())
	for i, row := range ds.Rows {
		values := make([]any, len(ds.Columns))
		for c, col := range ds.Columns {
			values[c] = row.Cell(col)
		}
		doc.Values[i] = values
	}
	return doc, nil
}

// FileName returns the download name for the document, e.g.
// executive-sales-report-2026-10-19.pdf.
func (d ReportDocument) FileName(ext string) string {
	return strcase.ToKebab(d.Title) + "-" + d.GeneratedAt.Format(time.DateOnly) + "." + strings.TrimPrefix(ext, ".")
}

// Footer returns the footer line for page i of n.
func (d ReportDocument) Footer(page, pages string) string {
	return "Page " + page + " of " + pages + " - " + d.Brand
}

// ReportWriter serializes a report document to a concrete format.
type ReportWriter interface {
	WriteReport(w io.Writer, doc ReportDocument) error
	Extension() string
	ContentType() string
}
