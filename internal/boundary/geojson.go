package boundary

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

type rawCollection struct {
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Load reads a boundary catalog, choosing the decoder by file extension:
// .shp files go through LoadShapefile, everything else is read as GeoJSON.
func Load(path string, fields []NameField) (*Catalog, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return LoadShapefile(path, fields)
	}
	return LoadGeoJSON(path, fields)
}

// LoadGeoJSON reads a GeoJSON FeatureCollection from disk.
func LoadGeoJSON(path string, fields []NameField) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return DecodeGeoJSON(f, fields)
}

// DecodeGeoJSON decodes a FeatureCollection. A feature whose geometry is
// missing, malformed or not a (multi)polygon is kept with a nil Geometry so
// that name lookups still find it; the resolver then falls back to the
// territory center for it.
func DecodeGeoJSON(r io.Reader, fields []NameField) (*Catalog, error) {
	var fc rawCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode feature collection")
	}

	log := zap.L().With(zap.String("component", "boundary.geojson"))

	features := make([]Feature, 0, len(fc.Features))
	var badGeom int
	for i, rf := range fc.Features {
		var feat Feature
		for k, v := range rf.Properties {
			if s, ok := v.(string); ok {
				feat.setAttribute(k, s)
			}
		}

		g, err := decodeGeometry(rf.Geometry)
		if err != nil {
			badGeom++
			log.Warn("boundary: keeping feature without geometry",
				zap.Int("index", i),
				zap.String("name", feat.DisplayName(DefaultNameFields())),
				zap.Error(err),
			)
		}
		feat.Geometry = g
		features = append(features, feat)
	}

	log.Debug("boundary: geojson decoded",
		zap.Int("features", len(features)),
		zap.Int("bad_geometry", badGeom),
	)
	return NewCatalog(features, fields), nil
}

// decodeGeometry returns nil, nil for an absent geometry.
func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geometry")
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	default:
		return nil, eris.Errorf("boundary: unsupported geometry %T", g)
	}
}
