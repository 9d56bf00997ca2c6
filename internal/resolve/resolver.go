// Package resolve turns region names into renderable map coordinates.
//
// Resolution never fails. A name is looked up in the known-point registry
// first, then in the boundary catalog (where the outer ring of the region's
// polygon is vertex-sampled), and otherwise lands on the fixed territory
// center.
package resolve

import (
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/boundary"
	"github.com/sells-group/triagemap/internal/geo"
)

// sampleTarget is the approximate number of outer-ring vertices averaged.
const sampleTarget = 10

// DefaultFallback is the center of Pakistan, used when a region cannot be
// placed any other way.
var DefaultFallback = geo.Point{Lat: 30.3753, Lon: 69.3451}

// Source says which step produced a resolution.
type Source string

// Resolution sources, in precedence order.
const (
	SourceRegistry Source = "registry"
	SourceBoundary Source = "boundary"
	SourceFallback Source = "fallback"
)

// Resolution is a resolved region center and where it came from.
type Resolution struct {
	Point  geo.Point `json:"center"`
	Source Source    `json:"source"`
}

// PointSource is the known-point registry.
type PointSource interface {
	Lookup(name string) (geo.Point, bool)
}

// FeatureSource is the boundary catalog.
type FeatureSource interface {
	Lookup(name string) (*boundary.Feature, bool)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback overrides the territory center.
func WithFallback(p geo.Point) Option {
	return func(r *Resolver) {
		r.fallback = p
	}
}

// WithCache sets the memo. Pass nil to disable memoization.
func WithCache(c *PointCache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// Resolver resolves region centers against injected, read-only catalogs.
type Resolver struct {
	mu       sync.RWMutex
	known    PointSource
	catalog  FeatureSource
	fallback geo.Point
	cache    *PointCache
}

// New creates a Resolver. Either source may be nil.
func New(known PointSource, catalog FeatureSource, opts ...Option) *Resolver {
	r := &Resolver{
		known:    known,
		catalog:  catalog,
		fallback: DefaultFallback,
		cache:    NewPointCache(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the region's renderable center.
func (r *Resolver) Resolve(name string) geo.Point {
	return r.Explain(name).Point
}

// Explain resolves a region and reports which step produced the point.
func (r *Resolver) Explain(name string) Resolution {
	// The read lock spans lookup, computation and memo insert so a concurrent
	// Reload cannot interleave a stale entry into the fresh memo.
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cache != nil {
		if res, ok := r.cache.Get(name); ok {
			return res
		}
	}

	res := r.resolve(name)
	if r.cache != nil {
		r.cache.Put(name, res)
	}
	return res
}

// Reload swaps the catalogs and clears the memo.
func (r *Resolver) Reload(known PointSource, catalog FeatureSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.known = known
	r.catalog = catalog
	if r.cache != nil {
		r.cache.Invalidate()
	}
}

// Fallback returns the territory center.
func (r *Resolver) Fallback() geo.Point {
	return r.fallback
}

// CacheStats reports memo statistics; zero when memoization is disabled.
func (r *Resolver) CacheStats() CacheStats {
	if r.cache == nil {
		return CacheStats{}
	}
	return r.cache.Stats()
}

func (r *Resolver) resolve(name string) Resolution {
	if r.known != nil {
		if p, ok := r.known.Lookup(name); ok {
			return Resolution{Point: p, Source: SourceRegistry}
		}
	}

	if r.catalog != nil {
		if f, ok := r.catalog.Lookup(name); ok {
			p, err := Center(f.Geometry)
			if err == nil {
				return Resolution{Point: p, Source: SourceBoundary}
			}
			zap.L().Warn("resolve: geometry unusable, using territory center",
				zap.String("region", name),
				zap.Error(err),
			)
			return Resolution{Point: r.fallback, Source: SourceFallback}
		}
	}

	zap.L().Debug("resolve: region not in registry or catalog", zap.String("region", name))
	return Resolution{Point: r.fallback, Source: SourceFallback}
}

// Center approximates a polygon's center by averaging about ten evenly spaced
// vertices of its outer ring. For a MultiPolygon only the first polygon is
// sampled.
func Center(g geom.T) (geo.Point, error) {
	var poly *geom.Polygon
	switch t := g.(type) {
	case nil:
		return geo.Point{}, eris.New("resolve: no geometry")
	case *geom.Polygon:
		poly = t
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return geo.Point{}, eris.New("resolve: empty multipolygon")
		}
		poly = t.Polygon(0)
	default:
		return geo.Point{}, eris.Errorf("resolve: unsupported geometry %T", g)
	}

	if poly == nil || poly.NumLinearRings() == 0 {
		return geo.Point{}, eris.New("resolve: polygon has no outer ring")
	}
	return sampleRing(poly.LinearRing(0))
}

// sampleRing averages latitude and longitude independently over vertices
// taken at stride max(1, n/10).
func sampleRing(ring *geom.LinearRing) (geo.Point, error) {
	n := ring.NumCoords()
	if n == 0 {
		return geo.Point{}, eris.New("resolve: outer ring has no vertices")
	}

	stride := max(1, n/sampleTarget)
	var latSum, lonSum float64
	var count int
	for i := 0; i < n; i += stride {
		c := ring.Coord(i)
		lonSum += c[0]
		latSum += c[1]
		count++
	}
	if count == 0 {
		return geo.PointFromCoord(ring.Coord(0)), nil
	}

	p := geo.Point{Lat: latSum / float64(count), Lon: lonSum / float64(count)}
	if !p.Valid() {
		return geo.Point{}, eris.Errorf("resolve: sampled point %v out of range", p)
	}
	return p, nil
}
