package insight

import (
	"math"
	"strings"
	"sync"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var (
	// MapCenter is the initial map view centre.
	MapCenter = LatLng{Lat: 39.8283, Lng: -98.5795}
	// MapZoom is the initial zoom level.
	MapZoom = 4

	regionCoordinates = map[string]LatLng{
		"north":   {Lat: 46, Lng: -100},
		"south":   {Lat: 33, Lng: -90},
		"east":    {Lat: 40, Lng: -75},
		"west":    {Lat: 38, Lng: -115},
		"central": {Lat: 39, Lng: -98},
	}
)

// RegionCoordinate returns the fixed coordinate for a region name. Unknown
// regions fall back to Central.
func RegionCoordinate(region string) LatLng {
	if c, ok := regionCoordinates[strings.ToLower(strings.TrimSpace(region))]; ok {
		return c
	}
	return regionCoordinates["central"]
}

// Marker is a circle on the map sized by regional sales.
type Marker struct {
	Region   string  `json:"region"`
	Position LatLng  `json:"position"`
	Sales    float64 `json:"sales"`
	RadiusM  float64 `json:"radius_m"`
	Popup    string  `json:"popup"`
}

// MarkerRadius is ln(sales) * 5000 metres.
func MarkerRadius(sales float64) float64 {
	return math.Log(sales) * 5000
}

// AggregateMarkers sums sales per region and builds one marker per region with
// a positive total and a positive radius, in first-seen order.
func AggregateMarkers(ds Dataset, resolver ColumnResolver) []Marker {
	if resolver == nil {
		resolver = NewAliasResolver()
	}
	regionCol := resolver.Resolve(ds.Columns, RoleRegion)
	salesCol := resolver.Resolve(ds.Columns, RoleSales)

	totals := newTally()
	for _, row := range ds.Rows {
		region := row.Cell(regionCol)
		if !present(region) {
			continue
		}
		totals.add(textValue(region), floatOr(row.Cell(salesCol), 0))
	}

	var markers []Marker
	totals.each(func(region string, sales float64) {
		if sales <= 0 {
			return
		}
		radius := MarkerRadius(sales)
		if radius <= 0 {
			return
		}
		markers = append(markers, Marker{
			Region:   region,
			Position: RegionCoordinate(region),
			Sales:    sales,
			RadiusM:  radius,
			Popup:    "Region: " + region + " / Sales: " + FormatUSD(sales),
		})
	})
	return markers
}

// MapCanvas is the long-lived map instance of a workspace. It is created once
// and every update replaces the full marker set.
type MapCanvas struct {
	mu       sync.RWMutex
	center   LatLng
	zoom     int
	markers  []Marker
	revision uint64
}

// NewMapCanvas creates a canvas at the default centre and zoom.
func NewMapCanvas() *MapCanvas {
	return &MapCanvas{center: MapCenter, zoom: MapZoom}
}

// Replace removes every existing marker and adds the given ones.
func (m *MapCanvas) Replace(markers []Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append([]Marker(nil), markers...)
	m.revision++
}

// Snapshot returns the current state of the canvas.
func (m *MapCanvas) Snapshot() MapView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MapView{
		Center:   m.center,
		Zoom:     m.zoom,
		Markers:  append([]Marker(nil), m.markers...),
		Revision: m.revision,
	}
}

// MapView is a point-in-time copy of a MapCanvas.
type MapView struct {
	Center   LatLng   `json:"center"`
	Zoom     int      `json:"zoom"`
	Markers  []Marker `json:"markers"`
	Revision uint64   `json:"revision"`
	HTML     string   `json:"-"`
}
