// Package registry holds authoritative coordinates for well-known places. A
// registry hit bypasses polygon sampling in the region center resolver.
package registry

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/triagemap/internal/geo"
)

//go:embed pakistan.yaml
var defaultPoints []byte

// Registry is a read-only name → coordinate table, safe for concurrent use.
type Registry struct {
	points map[string]geo.Point
}

type fileFormat struct {
	Points map[string][]float64 `yaml:"points"`
}

// New builds a registry from a copy of points.
func New(points map[string]geo.Point) *Registry {
	r := &Registry{points: make(map[string]geo.Point, len(points))}
	for k, v := range points {
		r.points[k] = v
	}
	return r
}

// Default returns the built-in registry of major Pakistani cities.
func Default() (*Registry, error) {
	r, err := Parse(defaultPoints)
	if err != nil {
		return nil, eris.Wrap(err, "registry: embedded default")
	}
	return r, nil
}

// Load reads a registry YAML file. An empty path returns Default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return Parse(data)
}

// Parse decodes registry YAML of the form
//
//	points:
//	  Lahore: [31.5204, 74.3587]
func Parse(data []byte) (*Registry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: decode yaml")
	}

	points := make(map[string]geo.Point, len(f.Points))
	for name, pair := range f.Points {
		if len(pair) != 2 {
			return nil, eris.Errorf("registry: %q needs [lat, lon], got %d values", name, len(pair))
		}
		p := geo.Point{Lat: pair[0], Lon: pair[1]}
		if !p.Valid() {
			return nil, eris.Errorf("registry: %q has out-of-range coordinate %v", name, pair)
		}
		points[name] = p
	}
	return &Registry{points: points}, nil
}

// Lookup returns the registered coordinate for an exact name.
func (r *Registry) Lookup(name string) (geo.Point, bool) {
	if r == nil {
		return geo.Point{}, false
	}
	p, ok := r.points[name]
	return p, ok
}

// Len returns the number of registered places.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.points)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.points))
	for k := range r.points {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
