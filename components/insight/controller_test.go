package insight

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type stubMapRenderer struct {
	calls int
	err   error
}

func (s *stubMapRenderer) RenderMap(view MapView) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "<div>map</div>", nil
}

func newTestController(t *testing.T) (*Controller, *recordingTelemetry, *stubMapRenderer) {
	t.Helper()
	tel := &recordingTelemetry{}
	renderer := &stubMapRenderer{}
	c := NewController(Options{
		Telemetry:   tel,
		MapRenderer: renderer,
		Clock:       func() time.Time { return reportTime },
	})
	return c, tel, renderer
}

func TestControllerLoadResetsSortAndDerives(t *testing.T) {
	c, tel, _ := newTestController(t)
	ws := NewWorkspace("s1")
	ctx := context.Background()

	c.Load(ctx, ws, salesDataset())
	_, err := c.ToggleSort(ctx, ws, "Amount")
	require.NoError(t, err)
	assert.True(t, ws.Sort().Active())

	view := c.Load(ctx, ws, salesDataset())
	assert.False(t, ws.Sort().Active())
	assert.False(t, view.Empty)
	assert.True(t, ws.Loaded())
	assert.Equal(t, reportTime, view.LoadedAt)
	assert.Equal(t, "<div>map</div>", view.Map.HTML)
	assert.Equal(t, uint64(2), view.Map.Revision)
	assert.Equal(t, []string{"insight.dataset.loaded", "insight.table.sorted", "insight.dataset.loaded"}, tel.events)
}

func TestControllerToggleSortLeavesMapAlone(t *testing.T) {
	c, _, _ := newTestController(t)
	ws := NewWorkspace("s1")
	ctx := context.Background()
	c.Load(ctx, ws, salesDataset())

	view, err := c.ToggleSort(ctx, ws, "Amount")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.Map.Revision)
	assert.Equal(t, "▲", view.Table.Headers[2].Glyph)

	view, err = c.ToggleSort(ctx, ws, "Amount")
	require.NoError(t, err)
	assert.Equal(t, "▼", view.Table.Headers[2].Glyph)
}

func TestControllerToggleSortUnknownColumn(t *testing.T) {
	c, _, _ := newTestController(t)
	ws := NewWorkspace("s1")
	c.Load(context.Background(), ws, salesDataset())

	_, err := c.ToggleSort(context.Background(), ws, "Nope")
	assert.True(t, errors.Is(err, ErrUnknownColumn))
	assert.Equal(t, KindValidation, Classify(err))
	assert.False(t, ws.Sort().Active())
}

func TestControllerSaveRowKeepsSortAndRefreshesEverything(t *testing.T) {
	c, _, _ := newTestController(t)
	ws := NewWorkspace("s1")
	ctx := context.Background()
	c.Load(ctx, ws, salesDataset())
	_, err := c.ToggleSort(ctx, ws, "Amount")
	require.NoError(t, err)

	before := ws.Dataset()
	form, err := c.OpenEditor(ws, 1)
	require.NoError(t, err)
	for i := range form.Fields {
		if form.Fields[i].Column == "Amount" {
			form.Fields[i].Value = "5000"
		}
	}
	view, err := c.SaveRow(ctx, ws, 1, form.Fields)
	require.NoError(t, err)

	after := ws.Dataset()
	assert.Equal(t, before.Columns, after.Columns)
	require.Len(t, after.Rows, len(before.Rows))
	for i := range before.Rows {
		if i == 1 {
			continue
		}
		assert.Equal(t, before.Rows[i], after.Rows[i], "row %d must not change", i)
	}

	assert.Equal(t, SortState{Column: "Amount", Ascending: true}, ws.Sort())
	assert.Equal(t, 1, view.Table.Rows[len(view.Table.Rows)-1].Index)
	assert.InDelta(t, 7500, view.KPIs.TotalSales, 1e-9)
	assert.Equal(t, uint64(2), view.Map.Revision)
	assert.Equal(t, 5000.0, ws.Dataset().Rows[1]["Amount"])
}

func TestControllerSaveRowOutOfRange(t *testing.T) {
	c, _, _ := newTestController(t)
	ws := NewWorkspace("s1")
	c.Load(context.Background(), ws, salesDataset())
	_, err := c.SaveRow(context.Background(), ws, 99, nil)
	assert.True(t, errors.Is(err, ErrRowOutOfRange))
}

func TestControllerEmptyDatasetSkipsMapRender(t *testing.T) {
	c, _, renderer := newTestController(t)
	ws := NewWorkspace("s1")
	view := c.Load(context.Background(), ws, Dataset{})
	assert.True(t, view.Empty)
	assert.Zero(t, renderer.calls)
	assert.Empty(t, view.Map.Markers)
}

func TestControllerMapRenderFailureKeepsView(t *testing.T) {
	c, _, renderer := newTestController(t)
	renderer.err = errors.New("boom")
	view := c.Load(context.Background(), NewWorkspace("s1"), salesDataset())
	assert.Empty(t, view.Map.HTML)
	assert.NotEmpty(t, view.Map.Markers)
}

func TestControllerExport(t *testing.T) {
	c, tel, _ := newTestController(t)
	ws := NewWorkspace("s1")
	ctx := context.Background()

	var buf bytes.Buffer
	_, wrote, err := c.Export(ctx, ws, NewPDFReportWriter(), &buf)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Zero(t, buf.Len())

	c.Load(ctx, ws, salesDataset())
	doc, wrote, err := c.Export(ctx, ws, NewXLSXReportWriter(), &buf)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.NotZero(t, buf.Len())
	assert.Equal(t, "executive-sales-report-2026-03-09.xlsx", doc.FileName("xlsx"))
	assert.Contains(t, tel.events, "insight.report.exported")
}

func TestControllerExactMapPolicy(t *testing.T) {
	c := NewController(Options{MapPolicy: MapPolicyExact})
	ds := NewDataset([]string{"Zona", "Ventas"}, []Row{{"Zona": "Sur", "Ventas": 10.0}})
	view := c.Load(context.Background(), NewWorkspace("s1"), ds)
	require.Len(t, view.Map.Markers, 1)
	assert.Equal(t, "Sur", view.Map.Markers[0].Region)
}

func TestWorkspaceRegistry(t *testing.T) {
	reg := NewWorkspaceRegistry()
	a := reg.Get("a")
	assert.Same(t, a, reg.Get("a"))
	reg.Get("b")
	assert.Equal(t, 2, reg.Len())

	assert.Zero(t, reg.Evict(time.Hour))
	assert.Equal(t, 2, reg.Evict(-time.Second))
	assert.Zero(t, reg.Len())

	reg.Get("c")
	reg.Drop("c")
	assert.Zero(t, reg.Len())
}

func TestWorkspaceDatasetIsCopy(t *testing.T) {
	c := NewController(Options{})
	ws := NewWorkspace("s1")
	c.Load(context.Background(), ws, salesDataset())

	ds := ws.Dataset()
	ds.Rows[0]["Product"] = "changed"
	assert.Equal(t, "Laptop", ws.Dataset().Rows[0]["Product"])
}
