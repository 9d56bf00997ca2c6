package mapview

import (
	"sort"
	"sync"

	"github.com/sells-group/triagemap/internal/feed"
	"github.com/sells-group/triagemap/internal/hotspot"
	"github.com/sells-group/triagemap/internal/zone"
)

// Render is the render-ready map for one disease.
type Render struct {
	DiseaseID     int                   `json:"disease_id"`
	Loaded        bool                  `json:"loaded"`
	TotalPatients int                   `json:"total_patients"`
	Regions       zone.Stats            `json:"regions"`
	Styles        map[string]zone.Style `json:"styles"`
	Tooltips      map[string]string     `json:"tooltips,omitempty"`
	Hotspots      []hotspot.Hotspot     `json:"hotspots"`
	Legend        []zone.LegendEntry    `json:"legend"`
}

// RegionLister lists the regions the map draws, in draw order.
type RegionLister interface {
	Names() []string
}

// Builder derives a Render from a feed response. Every region in the
// boundary catalog gets a style, plus any feed region the catalog lacks.
type Builder struct {
	mu         sync.RWMutex
	regions    RegionLister
	extractor  *hotspot.Extractor
	thresholds zone.Thresholds
}

// NewBuilder creates a Builder. regions may be nil.
func NewBuilder(regions RegionLister, extractor *hotspot.Extractor, thresholds zone.Thresholds) *Builder {
	return &Builder{regions: regions, extractor: extractor, thresholds: thresholds}
}

// SetRegions swaps the region list after a catalog reload.
func (b *Builder) SetRegions(regions RegionLister) {
	b.mu.Lock()
	b.regions = regions
	b.mu.Unlock()
}

// Build derives styles, tooltips, hotspots and the legend for a loaded
// response. A nil response builds an empty, loaded map.
func (b *Builder) Build(diseaseID int, resp *feed.Response) *Render {
	stats := zone.Stats{}
	total := 0
	if resp != nil {
		if resp.Regions != nil {
			stats = resp.Regions
		}
		total = resp.TotalPatients
	}

	c := zone.NewClassifier(stats)
	names := b.names(stats)
	styles := make(map[string]zone.Style, len(names))
	tooltips := make(map[string]string, len(names))
	for _, name := range names {
		styles[name] = c.StyleFor(name)
		tooltips[name] = c.Tooltip(name)
	}

	return &Render{
		DiseaseID:     diseaseID,
		Loaded:        true,
		TotalPatients: total,
		Regions:       stats,
		Styles:        styles,
		Tooltips:      tooltips,
		Hotspots:      b.extractor.Extract(stats),
		Legend:        zone.Legend(b.thresholds),
	}
}

// Placeholder builds the not-yet-loaded map: every catalog region in the
// neutral style and no hotspots.
func (b *Builder) Placeholder(diseaseID int) *Render {
	c := zone.NewClassifier(nil)
	names := b.names(nil)
	styles := make(map[string]zone.Style, len(names))
	for _, name := range names {
		styles[name] = c.StyleFor(name)
	}

	return &Render{
		DiseaseID: diseaseID,
		Regions:   zone.Stats{},
		Styles:    styles,
		Hotspots:  []hotspot.Hotspot{},
		Legend:    zone.Legend(b.thresholds),
	}
}

func (b *Builder) names(stats zone.Stats) []string {
	b.mu.RLock()
	regions := b.regions
	b.mu.RUnlock()

	var names []string
	seen := make(map[string]bool)
	if regions != nil {
		for _, n := range regions.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	var extra []string
	for n := range stats {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
