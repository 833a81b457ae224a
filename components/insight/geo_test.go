package insight

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateMarkersSkipsNonPositiveSales(t *testing.T) {
	ds := NewDataset(
		[]string{"Region", "Amount"},
		[]Row{
			{"Region": "North", "Amount": 1000.0},
			{"Region": "North", "Amount": 500.0},
			{"Region": "South", "Amount": -10.0},
			{"Region": "East", "Amount": 0.5},
			{"Region": "", "Amount": 99.0},
			{"Region": "Atlantis", "Amount": 20.0},
		},
	)
	markers := AggregateMarkers(ds, nil)

	require.Len(t, markers, 2)
	assert.Equal(t, "North", markers[0].Region)
	assert.Equal(t, 1500.0, markers[0].Sales)
	assert.InDelta(t, math.Log(1500)*5000, markers[0].RadiusM, 1e-6)
	assert.Equal(t, LatLng{Lat: 46, Lng: -100}, markers[0].Position)
	assert.Equal(t, "Region: North / Sales: $1,500", markers[0].Popup)

	assert.Equal(t, "Atlantis", markers[1].Region)
	assert.Equal(t, LatLng{Lat: 39, Lng: -98}, markers[1].Position, "unknown regions use Central")
	for _, m := range markers {
		assert.Greater(t, m.Sales, 0.0)
		assert.Greater(t, m.RadiusM, 0.0)
	}
}

func TestAggregateMarkersExactPolicyIgnoresAmount(t *testing.T) {
	ds := NewDataset(
		[]string{"Region", "Amount"},
		[]Row{{"Region": "West", "Amount": 100.0}},
	)
	assert.Empty(t, AggregateMarkers(ds, ResolverFor(MapPolicyExact)))
	assert.Len(t, AggregateMarkers(ds, ResolverFor(MapPolicyUnified)), 1)
}

func TestMapCanvasReplaceRemovesPreviousMarkers(t *testing.T) {
	canvas := NewMapCanvas()
	canvas.Replace([]Marker{{Region: "North"}, {Region: "South"}})
	canvas.Replace([]Marker{{Region: "West"}})

	snap := canvas.Snapshot()
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, "West", snap.Markers[0].Region)
	assert.Equal(t, uint64(2), snap.Revision)
	assert.Equal(t, MapCenter, snap.Center)
	assert.Equal(t, 4, snap.Zoom)
}

func TestRegionCoordinateCaseInsensitive(t *testing.T) {
	assert.Equal(t, LatLng{Lat: 40, Lng: -75}, RegionCoordinate(" east "))
}

func TestEChartsMapRendererCachesByMarkers(t *testing.T) {
	cache := NewChartCache(time.Minute)
	renderer := NewEChartsMapRenderer(WithMapCache(cache), WithMapTheme("dark"))
	view := MapView{
		Center:  MapCenter,
		Zoom:    MapZoom,
		Markers: []Marker{{Region: "North", Position: RegionCoordinate("North"), Sales: 100, RadiusM: MarkerRadius(100), Popup: "Region: North"}},
	}
	html, err := renderer.RenderMap(view)
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "echarts"), "expected echarts markup")
	assert.Contains(t, html, "Region: North")

	calls := 0
	cached, err := cache.GetOrRender("map:dark:"+markersHash(view.Markers), func() (string, error) {
		calls++
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, html, cached)
	assert.Zero(t, calls)
}

func TestSymbolSizeHasFloor(t *testing.T) {
	assert.Equal(t, 4, symbolSize(1))
	assert.Equal(t, 20, symbolSize(50000))
}
