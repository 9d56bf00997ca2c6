// Package hotspot promotes red-tier regions to map markers.
package hotspot

import (
	"sort"

	"github.com/sells-group/triagemap/internal/geo"
	"github.com/sells-group/triagemap/internal/zone"
)

// Default marker radii in meters. The pulse ring is ~1.4x the solid marker
// so both stay legible at country-level zoom.
const (
	DefaultInnerRadiusMeters = 70000.0
	DefaultOuterRadiusMeters = 100000.0
)

// Radii are the real-world radii of a hotspot's two concentric markers.
type Radii struct {
	InnerMeters float64 `yaml:"inner_radius_meters" mapstructure:"inner_radius_meters"`
	OuterMeters float64 `yaml:"outer_radius_meters" mapstructure:"outer_radius_meters"`
}

// DefaultRadii returns the stock 70 km / 100 km radii.
func DefaultRadii() Radii {
	return Radii{InnerMeters: DefaultInnerRadiusMeters, OuterMeters: DefaultOuterRadiusMeters}
}

// Hotspot is one red-tier region placed on the map.
type Hotspot struct {
	Name              string    `json:"name"`
	Center            geo.Point `json:"center"`
	InnerRadiusMeters float64   `json:"innerRadiusMeters"`
	OuterRadiusMeters float64   `json:"outerRadiusMeters"`
	Percentage        float64   `json:"percentage"`
	Count             int       `json:"count"`
	Stat              zone.Stat `json:"-"`
}

// Resolver places a region on the map.
type Resolver interface {
	Resolve(name string) geo.Point
}

// Extractor derives hotspots from a disease's region stats.
type Extractor struct {
	resolver Resolver
	radii    Radii
}

// NewExtractor creates an Extractor. Zero radii fall back to DefaultRadii.
func NewExtractor(resolver Resolver, radii Radii) *Extractor {
	def := DefaultRadii()
	if radii.InnerMeters <= 0 {
		radii.InnerMeters = def.InnerMeters
	}
	if radii.OuterMeters <= 0 {
		radii.OuterMeters = def.OuterMeters
	}
	return &Extractor{resolver: resolver, radii: radii}
}

// Radii returns the marker radii applied to every hotspot.
func (e *Extractor) Radii() Radii {
	return e.radii
}

// Extract returns one hotspot per red-tier region, sorted by name. It never
// returns nil, so an empty result encodes as [].
func (e *Extractor) Extract(stats zone.Stats) []Hotspot {
	names := make([]string, 0, len(stats))
	for name, s := range stats {
		if s.ZoneType == zone.TierRed {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	hotspots := make([]Hotspot, 0, len(names))
	for _, name := range names {
		s := stats[name]
		hotspots = append(hotspots, Hotspot{
			Name:              name,
			Center:            e.resolver.Resolve(name),
			InnerRadiusMeters: e.radii.InnerMeters,
			OuterRadiusMeters: e.radii.OuterMeters,
			Percentage:        s.Percentage,
			Count:             s.Count,
			Stat:              s,
		})
	}
	return hotspots
}
