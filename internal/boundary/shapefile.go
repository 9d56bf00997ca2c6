package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads a polygon shapefile whose attribute table carries the
// NAME_2 / NAME_3 / name columns. Outer rings become the polygons of a
// MultiPolygon, in file order, with holes attached to them.
func LoadShapefile(shpPath string, fields []NameField) (*Catalog, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Attribute index by canonical key.
	attrIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		for _, key := range []string{KeyName2, KeyName3, KeyName} {
			if strings.EqualFold(name, key) {
				attrIdx[key] = i
			}
		}
	}
	if len(attrIdx) == 0 {
		return nil, eris.Errorf("boundary: %s has none of the %s/%s/%s fields", shpPath, KeyName2, KeyName3, KeyName)
	}

	var features []Feature
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		var feat Feature
		for key, idx := range attrIdx {
			feat.setAttribute(key, strings.TrimRight(reader.Attribute(idx), "\x00"))
		}

		if poly, ok := shape.(*shp.Polygon); ok {
			if mp := polygonToMultiPolygon(poly); mp != nil {
				feat.Geometry = mp
			}
		}
		if feat.Geometry == nil {
			skipped++
		}
		features = append(features, feat)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return NewCatalog(features, fields), nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefiles store outer rings clockwise and holes counter-clockwise; each
// outer ring starts a polygon and each hole joins the polygon whose outer ring
// bounds it, or the latest polygon when none does. A hole before any outer
// ring is taken as an outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts && int(i) < len(p.Parts); i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts && int(i+1) < len(p.Parts) {
			end = p.Parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(p.Points)) {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		area := signedArea(flat)
		if area == 0 {
			zap.L().Debug("boundary: skipping degenerate polygon ring", zap.Int32("part", i))
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if area > 0 && len(polys) > 0 {
			owner := holeOwner(polys, flat[0], flat[1])
			if err := owner.Push(ring); err != nil {
				zap.L().Debug("boundary: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}

	if len(polys) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace area of a flat XY ring: negative when the ring
// runs clockwise.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// holeOwner returns the latest polygon whose outer ring's bounding box holds
// (x, y), falling back to the latest polygon.
func holeOwner(polys []*geom.Polygon, x, y float64) *geom.Polygon {
	for i := len(polys) - 1; i >= 0; i-- {
		b := polys[i].LinearRing(0).Bounds()
		if x >= b.Min(0) && x <= b.Max(0) && y >= b.Min(1) && y <= b.Max(1) {
			return polys[i]
		}
	}
	return polys[len(polys)-1]
}
