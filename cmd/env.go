package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/triagemap/internal/boundary"
	"github.com/sells-group/triagemap/internal/config"
	"github.com/sells-group/triagemap/internal/feed"
	"github.com/sells-group/triagemap/internal/hotspot"
	"github.com/sells-group/triagemap/internal/mapview"
	"github.com/sells-group/triagemap/internal/model"
	"github.com/sells-group/triagemap/internal/registry"
	"github.com/sells-group/triagemap/internal/resolve"
	"github.com/sells-group/triagemap/internal/store"
)

// mapEnv bundles everything a map-producing command needs.
type mapEnv struct {
	Resolver  *resolve.Resolver
	Extractor *hotspot.Extractor
	Builder   *mapview.Builder
	Store     store.Store // nil when the feed is remote and no store was requested
	Feed      feed.Source
	View      *mapview.View

	reloadMu     sync.Mutex
	loadCatalogs func(ctx context.Context) (*boundary.Catalog, *registry.Registry, error)
}

// Close cancels in-flight fetches and closes the store.
func (e *mapEnv) Close() {
	if e.View != nil {
		e.View.Close()
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// Reload re-reads the boundary catalog and registry and clears the
// resolver's memo.
func (e *mapEnv) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if e.loadCatalogs == nil {
		return eris.New("reload: no catalog loader configured")
	}
	cat, reg, err := e.loadCatalogs(ctx)
	if err != nil {
		return eris.Wrap(err, "reload")
	}
	e.Resolver.Reload(reg, cat)
	e.Builder.SetRegions(cat)

	zap.L().Info("catalogs reloaded",
		zap.Int("boundary_regions", cat.Len()),
		zap.Int("registry_points", reg.Len()),
	)
	return nil
}

// Diseases lists the diseases known to the store, or the seeded set when
// running against a remote feed without a store.
func (e *mapEnv) Diseases(ctx context.Context) ([]model.Disease, error) {
	if e.Store == nil {
		return model.SeedDiseases, nil
	}
	return e.Store.ListDiseases(ctx)
}

// loadCatalogs reads the boundary catalog and the known-point registry in
// parallel.
func loadCatalogs(_ context.Context, c *config.Config) (*boundary.Catalog, *registry.Registry, error) {
	fields, err := boundary.FieldsByKey(c.Boundary.NameFields)
	if err != nil {
		return nil, nil, err
	}

	var (
		cat *boundary.Catalog
		reg *registry.Registry
		g   errgroup.Group
	)
	g.Go(func() error {
		if c.Boundary.Path == "" {
			zap.L().Warn("no boundary catalog configured; regions outside the registry use the territory center")
			cat = boundary.NewCatalog(nil, fields)
			return nil
		}
		var err error
		cat, err = boundary.Load(c.Boundary.Path, fields)
		return err
	})
	g.Go(func() error {
		var err error
		reg, err = registry.Load(c.Registry.Path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "load catalogs")
	}
	return cat, reg, nil
}

// openStore opens and migrates the configured case store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newFeed builds the configured feed source. st may be nil for the http
// source.
func newFeed(c *config.Config, st store.Store) (feed.Source, error) {
	switch c.Feed.Source {
	case "http":
		timeout := time.Duration(c.Feed.TimeoutSecs) * time.Second
		opts := []feed.HTTPOption{feed.WithHTTPClient(&http.Client{Timeout: timeout})}
		if c.Feed.RateLimit > 0 {
			opts = append(opts, feed.WithRateLimit(c.Feed.RateLimit))
		}
		return feed.NewHTTPSource(c.Feed.BaseURL, opts...), nil
	case "store", "":
		if st == nil {
			return nil, eris.New("feed: store source requires a case store")
		}
		return feed.NewStoreSource(st, c.Zone.Thresholds()), nil
	default:
		return nil, eris.Errorf("feed: unknown source %q", c.Feed.Source)
	}
}

// initMapEnv loads catalogs and wires the resolver, extractor, feed and view.
// The case store is opened when the feed needs it or withStore is set.
func initMapEnv(ctx context.Context, c *config.Config, withStore bool) (*mapEnv, error) {
	load := func(ctx context.Context) (*boundary.Catalog, *registry.Registry, error) {
		return loadCatalogs(ctx, c)
	}
	cat, reg, err := load(ctx)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if withStore || c.Feed.Source != "http" {
		st, err = openStore(ctx, c)
		if err != nil {
			return nil, err
		}
	}

	src, err := newFeed(c, st)
	if err != nil {
		if st != nil {
			st.Close() //nolint:errcheck
		}
		return nil, err
	}

	env := newMapEnv(c, cat, reg, st, src)
	env.loadCatalogs = load

	zap.L().Info("map environment ready",
		zap.Int("boundary_regions", cat.Len()),
		zap.Int("registry_points", reg.Len()),
		zap.String("feed", c.Feed.Source),
	)
	return env, nil
}

// newMapEnv wires already-loaded parts together.
func newMapEnv(c *config.Config, cat *boundary.Catalog, reg *registry.Registry, st store.Store, src feed.Source) *mapEnv {
	resolver := resolve.New(reg, cat,
		resolve.WithFallback(c.Territory.Center()),
		resolve.WithCache(resolve.NewPointCache(c.Resolve.CacheSize)),
	)
	extractor := hotspot.NewExtractor(resolver, c.Hotspot.Radii())
	builder := mapview.NewBuilder(cat, extractor, c.Zone.Thresholds())

	return &mapEnv{
		Resolver:  resolver,
		Extractor: extractor,
		Builder:   builder,
		Store:     st,
		Feed:      src,
		View:      mapview.New(src, builder),
	}
}
