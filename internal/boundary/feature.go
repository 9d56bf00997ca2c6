// Package boundary loads administrative boundary polygons and finds them by
// region name.
package boundary

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Attribute keys carried by GADM level-3 boundary files.
const (
	KeyName2 = "NAME_2"
	KeyName3 = "NAME_3"
	KeyName  = "name"
)

// Feature is one administrative region. Geometry is a *geom.Polygon or
// *geom.MultiPolygon, or nil when the source geometry was missing or could
// not be decoded.
type Feature struct {
	Name2    string // district
	Name3    string // tehsil
	Name     string // generic fallback name
	Geometry geom.T
}

// NameField reads one candidate name from a feature.
type NameField struct {
	Key string
	Get func(*Feature) string
}

// Known name fields.
var (
	FieldName2 = NameField{Key: KeyName2, Get: func(f *Feature) string { return f.Name2 }}
	FieldName3 = NameField{Key: KeyName3, Get: func(f *Feature) string { return f.Name3 }}
	FieldName  = NameField{Key: KeyName, Get: func(f *Feature) string { return f.Name }}
)

// DefaultNameFields returns the name fields in lookup priority order.
func DefaultNameFields() []NameField {
	return []NameField{FieldName2, FieldName3, FieldName}
}

// FieldsByKey maps attribute keys to name fields, preserving order. An empty
// key list yields DefaultNameFields.
func FieldsByKey(keys []string) ([]NameField, error) {
	if len(keys) == 0 {
		return DefaultNameFields(), nil
	}
	fields := make([]NameField, 0, len(keys))
	for _, k := range keys {
		switch {
		case strings.EqualFold(k, KeyName2):
			fields = append(fields, FieldName2)
		case strings.EqualFold(k, KeyName3):
			fields = append(fields, FieldName3)
		case strings.EqualFold(k, KeyName):
			fields = append(fields, FieldName)
		default:
			return nil, eris.Errorf("boundary: unknown name field %q", k)
		}
	}
	return fields, nil
}

// setAttribute stores a source attribute on the matching typed field.
// Unknown keys are ignored.
func (f *Feature) setAttribute(key, value string) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyName2:
		f.Name2 = value
	case KeyName3:
		f.Name3 = value
	case KeyName:
		f.Name = value
	}
}

// DisplayName returns the first non-empty name in field order.
func (f *Feature) DisplayName(fields []NameField) string {
	for _, field := range fields {
		if v := field.Get(f); v != "" {
			return v
		}
	}
	return ""
}
