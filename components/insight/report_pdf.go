package insight

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin      = 14.0
	pdfBottom      = 16.0
	pdfRowHeight   = 6.0
	pdfHeaderColor = 41
)

// PDFReportWriter renders reports as A4 portrait PDFs.
type PDFReportWriter struct{}

// NewPDFReportWriter returns the PDF writer.
func NewPDFReportWriter() PDFReportWriter {
	return PDFReportWriter{}
}

// Extension implements ReportWriter.
func (PDFReportWriter) Extension() string { return "pdf" }

// ContentType implements ReportWriter.
func (PDFReportWriter) ContentType() string { return "application/pdf" }

// WriteReport implements ReportWriter.
func (PDFReportWriter) WriteReport(w io.Writer, doc ReportDocument) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfBottom)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, tr(doc.Footer(strconv.Itoa(pdf.PageNo()), "{nb}")), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(pdfHeaderColor, 128, 185)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, tr(doc.Generated), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, tr(doc.SummaryTitle), "", 1, "L", false, 0, "")
	summary := table{widths: []float64{60, 60}, header: []string{"Metric", "Value"}, size: 10}
	for _, kv := range doc.Summary {
		summary.rows = append(summary.rows, []string{kv[0], kv[1]})
	}
	summary.draw(pdf, tr)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, tr(doc.DetailTitle), "", 1, "L", false, 0, "")
	pageW, _ := pdf.GetPageSize()
	usable := pageW - 2*pdfMargin
	detail := table{header: doc.Columns, rows: doc.Rows, size: 7}
	if n := len(doc.Columns); n > 0 {
		detail.widths = make([]float64, n)
		for i := range detail.widths {
			detail.widths[i] = usable / float64(n)
		}
	}
	detail.draw(pdf, tr)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("insight: build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("insight: write pdf: %w", err)
	}
	return nil
}

type table struct {
	widths []float64
	header []string
	rows   [][]string
	size   float64
}

// draw renders the table, starting a new page and repeating the header row
// whenever the next row would cross the bottom margin.
func (t table) draw(pdf *fpdf.Fpdf, tr func(string) string) {
	if len(t.widths) == 0 {
		return
	}
	_, pageH := pdf.GetPageSize()
	limit := pageH - pdfBottom

	t.drawHeader(pdf, tr)
	pdf.SetFont("Helvetica", "", t.size)
	for i, row := range t.rows {
		if pdf.GetY()+pdfRowHeight > limit {
			pdf.AddPage()
			t.drawHeader(pdf, tr)
			pdf.SetFont("Helvetica", "", t.size)
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		pdf.SetTextColor(0, 0, 0)
		for c, w := range t.widths {
			text := ""
			if c < len(row) {
				text = fit(pdf, tr, row[c], w-2)
			}
			pdf.CellFormat(w, pdfRowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (t table) drawHeader(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", t.size)
	pdf.SetFillColor(pdfHeaderColor, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	for c, w := range t.widths {
		text := ""
		if c < len(t.header) {
			text = fit(pdf, tr, t.header[c], w-2)
		}
		pdf.CellFormat(w, pdfRowHeight+1, text, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

// fit translates text and truncates it with an ellipsis so it fits width at
// the current font.
func fit(pdf *fpdf.Fpdf, tr func(string) string, text string, width float64) string {
	if out := tr(text); pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := tr(string(runes) + "...")
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
