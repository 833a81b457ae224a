package insight

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const defaultChartHeight = "420px"

// MapRenderer turns a MapView into embeddable HTML.
type MapRenderer interface {
	RenderMap(view MapView) (string, error)
}

// EChartsMapRenderer plots region markers on a lon/lat scatter plane using go-echarts.
type EChartsMapRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
	title      string
}

// EChartsMapOption customizes the renderer.
type EChartsMapOption func(*EChartsMapRenderer)

// WithMapCache injects a render cache.
func WithMapCache(cache RenderCache) EChartsMapOption {
	return func(r *EChartsMapRenderer) {
		r.cache = cache
	}
}

// WithMapTheme sets the chart theme (defaults to Westeros).
func WithMapTheme(theme string) EChartsMapOption {
	return func(r *EChartsMapRenderer) {
		if strings.TrimSpace(theme) != "" {
			r.theme = theme
		}
	}
}

// WithMapAssetsHost rewrites the assets host so ECharts JS loads from a CDN.
func WithMapAssetsHost(host string) EChartsMapOption {
	return func(r *EChartsMapRenderer) {
		r.assetsHost = host
	}
}

// NewEChartsMapRenderer builds the map renderer.
func NewEChartsMapRenderer(options ...EChartsMapOption) *EChartsMapRenderer {
	r := &EChartsMapRenderer{
		theme: types.ThemeWesteros,
		title: "Sales by Region",
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// RenderMap implements MapRenderer. Output is cached per marker set.
func (r *EChartsMapRenderer) RenderMap(view MapView) (string, error) {
	render := func() (string, error) {
		return r.render(view)
	}
	if r.cache == nil {
		return render()
	}
	key := fmt.Sprintf("map:%s:%s", r.theme, markersHash(view.Markers))
	return r.cache.GetOrRender(key, render)
}

func (r *EChartsMapRenderer) render(view MapView) (string, error) {
	scatter := charts.NewScatter()
	initOpts := opts.Initialization{
		Theme:  r.theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	// Zoom 4 over the continental US spans roughly 60 degrees of longitude.
	span := 360 / math.Pow(2, float64(view.Zoom)) * 2.6
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: r.title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "lng",
			Type: "value",
			Min:  math.Floor(view.Center.Lng - span/2),
			Max:  math.Ceil(view.Center.Lng + span/2),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "lat",
			Type: "value",
			Min:  math.Floor(view.Center.Lat - span/4),
			Max:  math.Ceil(view.Center.Lat + span/4),
		}),
	)
	scatter.AddSeries("Sales", toMarkerData(view.Markers))
	return renderChart(scatter)
}

func toMarkerData(markers []Marker) []opts.ScatterData {
	data := make([]opts.ScatterData, len(markers))
	for i, m := range markers {
		data[i] = opts.ScatterData{
			Name:       m.Popup,
			Value:      []float64{m.Position.Lng, m.Position.Lat, m.Sales},
			Symbol:     "circle",
			SymbolSize: symbolSize(m.RadiusM),
		}
	}
	return data
}

// symbolSize maps a radius in metres to a pixel diameter.
func symbolSize(radiusM float64) int {
	return max(4, int(math.Round(radiusM/2500)))
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
