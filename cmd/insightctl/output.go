package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/backend"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(16)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderTable(w io.Writer, view insight.TableView) {
	headers := make([]string, len(view.Headers))
	for i, h := range view.Headers {
		headers[i] = h.Column + " " + h.Glyph
	}
	t := newTable().Headers(headers...)
	for _, row := range view.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.Text
		}
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render(view.Indicator))
}

func renderKPIs(w io.Writer, d insight.KPIDisplay) {
	renderPairs(w, [][2]string{
		{"Total sales", d.TotalSales},
		{"Total profit", d.TotalProfit},
		{"Top product", d.TopProduct + "  " + mutedStyle.Render(d.TopProductDetail)},
		{"Top region", d.TopRegion + "  " + mutedStyle.Render(d.TopRegionDetail)},
	})
}

func renderPairs(w io.Writer, pairs [][2]string) {
	for _, p := range pairs {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(p[0]), p[1]))
	}
}

func renderUsers(w io.Writer, users []backend.User) {
	t := newTable().Headers("ID", "Username", "Role")
	for _, u := range users {
		t.Row(strconv.Itoa(u.ID), u.Username, u.Role)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render(humanize.Comma(int64(len(users)))+" accounts"))
}

func printProgress(w io.Writer, events <-chan insight.ProgressEvent) {
	for ev := range events {
		switch ev.Phase {
		case insight.PhaseUploading:
			if ev.Total > 0 {
				fmt.Fprintf(w, "  uploading %s / %s (%d%%)\n", humanize.Bytes(uint64(ev.Sent)), humanize.Bytes(uint64(ev.Total)), ev.Percent)
			} else {
				fmt.Fprintln(w, "  uploading")
			}
		case insight.PhaseFailed:
			fmt.Fprintf(w, "  failed: %s\n", ev.Message)
		default:
			fmt.Fprintf(w, "  %s\n", ev.Phase)
		}
		if ev.Phase.Terminal() {
			return
		}
	}
}

type datasetDocument struct {
	Columns []string      `json:"columns" yaml:"columns"`
	Rows    []insight.Row `json:"rows" yaml:"rows"`
}

func writeDataset(w io.Writer, ds insight.Dataset, format string) error {
	doc := datasetDocument{Columns: ds.Columns, Rows: ds.Rows}
	if doc.Rows == nil {
		doc.Rows = []insight.Row{}
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("insightctl: encode json: %w", err)
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("insightctl: encode yaml: %w", err)
	}
	return nil
}
