package boundary

// Catalog is an immutable, name-indexed set of boundary features. It is safe
// for concurrent readers.
type Catalog struct {
	features []Feature
	fields   []NameField
	byName   map[string]int
}

// NewCatalog indexes features by display name. When two features share a
// display name the first one wins. A nil fields slice uses DefaultNameFields.
func NewCatalog(features []Feature, fields []NameField) *Catalog {
	if fields == nil {
		fields = DefaultNameFields()
	}
	c := &Catalog{
		features: features,
		fields:   fields,
		byName:   make(map[string]int, len(features)),
	}
	for i := range c.features {
		name := c.features[i].DisplayName(fields)
		if name == "" {
			continue
		}
		if _, dup := c.byName[name]; !dup {
			c.byName[name] = i
		}
	}
	return c
}

// Lookup returns the feature whose display name equals name.
func (c *Catalog) Lookup(name string) (*Feature, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.features[i], true
}

// Len returns the number of features, named or not.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.features)
}

// Names returns the distinct display names in source order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.byName))
	for i := range c.features {
		name := c.features[i].DisplayName(c.fields)
		if idx, ok := c.byName[name]; ok && idx == i {
			names = append(names, name)
		}
	}
	return names
}
