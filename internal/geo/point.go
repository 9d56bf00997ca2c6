// Package geo provides the coordinate types shared by the boundary catalog,
// the known-point registry and the region center resolver.
package geo

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Point is a WGS84 coordinate. It serializes as a [lat, lon] pair, which is
// the order map clients expect for marker centers.
type Point struct {
	Lat float64
	Lon float64
}

// PointFromCoord converts a go-geom XY coordinate (lon, lat) to a Point.
func PointFromCoord(c geom.Coord) Point {
	return Point{Lat: c[1], Lon: c[0]}
}

// Valid reports whether the point lies within WGS84 latitude/longitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Within reports whether the point lies inside the XY bounds (inclusive).
func (p Point) Within(b *geom.Bounds) bool {
	if b == nil || b.IsEmpty() {
		return false
	}
	return p.Lon >= b.Min(0) && p.Lon <= b.Max(0) && p.Lat >= b.Min(1) && p.Lat <= b.Max(1)
}

// MarshalJSON encodes the point as [lat, lon].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lon})
}

// UnmarshalJSON decodes a [lat, lon] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "geo: decode point")
	}
	if len(pair) != 2 {
		return eris.Errorf("geo: point needs 2 values, got %d", len(pair))
	}
	p.Lat, p.Lon = pair[0], pair[1]
	return nil
}
