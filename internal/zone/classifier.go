package zone

import (
	"fmt"
	"strings"
)

// Fill opacities. Classified regions are drawn more opaque than regions with
// confirmed zero cases, even when both carry the green tier color.
const (
	OpacityClassified  = 0.7
	OpacityZeroCases   = 0.5
	OpacityPlaceholder = 0.7
)

// Style is the fill a map layer applies to one region.
type Style struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Classifier answers per-region style and tooltip queries for one disease's
// stats. It never mutates the stats it was built from.
type Classifier struct {
	stats Stats
}

// NewClassifier wraps the feed's stats. Pass nil when the feed has not loaded.
func NewClassifier(stats Stats) *Classifier {
	return &Classifier{stats: stats}
}

// Loaded reports whether stats have been supplied.
func (c *Classifier) Loaded() bool {
	return c != nil && c.stats != nil
}

// StatFor returns the region's statistic. Regions absent from loaded stats
// get the green zero-case statistic; ok is false for them.
func (c *Classifier) StatFor(region string) (stat Stat, ok bool) {
	if !c.Loaded() {
		return ZeroStat(), false
	}
	stat, ok = c.stats[region]
	if !ok {
		return ZeroStat(), false
	}
	return stat, true
}

// StyleFor returns the fill style for a region:
//   - stats not loaded: neutral placeholder
//   - loaded, region absent: green at the lighter zero-case opacity
//   - loaded, region present: the region's color at full opacity
func (c *Classifier) StyleFor(region string) Style {
	if !c.Loaded() {
		return Style{FillColor: ColorPlaceholder, FillOpacity: OpacityPlaceholder}
	}
	stat, ok := c.stats[region]
	if !ok {
		return Style{FillColor: ColorGreen, FillOpacity: OpacityZeroCases}
	}
	color := stat.Color
	if color == "" {
		color = stat.ZoneType.Color()
	}
	return Style{FillColor: color, FillOpacity: OpacityClassified}
}

// Tooltip returns the hover text for a region.
func (c *Classifier) Tooltip(region string) string {
	var sb strings.Builder
	sb.WriteString(region)
	sb.WriteByte('\n')

	stat, ok := c.StatFor(region)
	if !ok {
		sb.WriteString("Zone: green (0%)\nPercentage: 0%\nPatient Cases: 0")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Zone: %s\nPercentage: %.2f%%\nPatient Cases: %d", stat.ZoneType, stat.Percentage, stat.Count)
	return sb.String()
}
