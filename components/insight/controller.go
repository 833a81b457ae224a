package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/goliatone/go-datainsight/internal/logging"
)

// ErrUnknownColumn is returned when a sort targets a column the dataset lacks.
var ErrUnknownColumn = fmt.Errorf("%w: unknown column", ErrValidation)

// Options configures a Controller. Zero values fall back to safe defaults.
type Options struct {
	Telemetry   Telemetry
	DateLayout  string
	KPIResolver ColumnResolver
	MapPolicy   MapPolicy
	MapRenderer MapRenderer
	TextColumns []string
	Report      ReportOptions
	Clock       func() time.Time
}

// Controller derives every dashboard view from a Workspace. All derivations
// are pure functions of the workspace state; the controller only sequences
// them and pushes markers into the workspace map canvas.
type Controller struct {
	formatter   Formatter
	kpiResolver ColumnResolver
	mapResolver ColumnResolver
	mapRenderer MapRenderer
	coercer     Coercer
	report      ReportOptions
	telemetry   Telemetry
	now         func() time.Time
}

// NewController wires the options into a controller.
func NewController(opts Options) *Controller {
	kpiResolver := opts.KPIResolver
	if kpiResolver == nil {
		kpiResolver = NewAliasResolver()
	}
	mapResolver := kpiResolver
	if opts.MapPolicy == MapPolicyExact {
		mapResolver = ResolverFor(MapPolicyExact)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		formatter:   NewFormatter(opts.DateLayout),
		kpiResolver: kpiResolver,
		mapResolver: mapResolver,
		mapRenderer: opts.MapRenderer,
		coercer:     Coercer{TextColumns: opts.TextColumns},
		report:      opts.Report,
		telemetry:   normalizeTelemetry(opts.Telemetry),
		now:         clock,
	}
}

// DashboardView is everything the dashboard page displays.
type DashboardView struct {
	Empty    bool
	Columns  []string
	Table    TableView
	KPIs     KPISnapshot
	Display  KPIDisplay
	Map      MapView
	Editor   EditorView
	LoadedAt time.Time
}

// Load replaces the workspace dataset, resets the sort and re-derives every view.
func (c *Controller) Load(ctx context.Context, ws *Workspace, ds Dataset) DashboardView {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.dataset = ds
	ws.sort = SortState{}
	ws.loaded = true
	ws.loadedAt = c.now()
	c.telemetry.Record(ctx, "insight.dataset.loaded", map[string]any{
		"rows":    ds.Len(),
		"columns": len(ds.Columns),
	})
	return c.derive(ctx, ws, true)
}

// View derives the current views without changing state.
func (c *Controller) View(ctx context.Context, ws *Workspace) DashboardView {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return c.derive(ctx, ws, false)
}

// ToggleSort applies a header click and re-derives the table.
func (c *Controller) ToggleSort(ctx context.Context, ws *Workspace, column string) (DashboardView, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !slices.Contains(ws.dataset.Columns, column) {
		return c.derive(ctx, ws, false), fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	ws.sort = ws.sort.Toggle(column)
	c.telemetry.Record(ctx, "insight.table.sorted", map[string]any{
		"column":    ws.sort.Column,
		"ascending": ws.sort.Ascending,
	})
	return c.derive(ctx, ws, false), nil
}

// OpenEditor snapshots a row for editing.
func (c *Controller) OpenEditor(ws *Workspace, index int) (EditForm, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return OpenEditForm(ws.dataset, index)
}

// SaveRow replaces the row at index with the submitted fields and re-derives
// every view. The sort state is kept.
func (c *Controller) SaveRow(ctx context.Context, ws *Workspace, index int, fields []EditField) (DashboardView, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	next, err := ReplaceRow(ws.dataset, index, c.coercer.BuildRow(fields))
	if err != nil {
		return DashboardView{}, err
	}
	ws.dataset = next
	c.telemetry.Record(ctx, "insight.row.saved", map[string]any{"index": index})
	return c.derive(ctx, ws, true), nil
}

// Report builds the export document for the workspace.
func (c *Controller) Report(ctx context.Context, ws *Workspace) (ReportDocument, error) {
	ws.mu.Lock()
	ds := ws.dataset
	ws.mu.Unlock()
	if ds.Empty() {
		return ReportDocument{}, ErrEmptyDataset
	}
	kpis := AggregateKPIs(ds, c.kpiResolver)
	return BuildReport(ds, kpis.Display(), c.formatter, c.report, c.now())
}

// Export writes the report with writer. It returns false without writing
// anything when the dataset is empty.
func (c *Controller) Export(ctx context.Context, ws *Workspace, writer ReportWriter, w io.Writer) (ReportDocument, bool, error) {
	doc, err := c.Report(ctx, ws)
	if errors.Is(err, ErrEmptyDataset) {
		return ReportDocument{}, false, nil
	}
	if err != nil {
		return ReportDocument{}, false, err
	}
	if err := writer.WriteReport(w, doc); err != nil {
		return ReportDocument{}, false, err
	}
	c.telemetry.Record(ctx, "insight.report.exported", map[string]any{
		"format": writer.Extension(),
		"rows":   len(doc.Rows),
	})
	return doc, true, nil
}

// derive must be called with ws.mu held. refreshMap pushes a fresh marker set
// into the canvas; sorting leaves the map untouched.
func (c *Controller) derive(ctx context.Context, ws *Workspace, refreshMap bool) DashboardView {
	ds := ws.dataset
	kpis := AggregateKPIs(ds, c.kpiResolver)
	canvas := ws.mapCanvas()
	if refreshMap {
		canvas.Replace(AggregateMarkers(ds, c.mapResolver))
	}
	view := DashboardView{
		Empty:    ds.Empty(),
		Columns:  ds.Columns,
		Table:    BuildTable(ds, ws.sort, c.formatter),
		KPIs:     kpis,
		Display:  kpis.Display(),
		Map:      canvas.Snapshot(),
		Editor:   BuildEditorView(ds, c.formatter),
		LoadedAt: ws.loadedAt,
	}
	if c.mapRenderer != nil && !view.Empty {
		html, err := c.mapRenderer.RenderMap(view.Map)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("map render failed")
		} else {
			view.Map.HTML = html
		}
	}
	return view
}
