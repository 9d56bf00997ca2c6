package zone

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// Default tier cutoffs, in percent of a disease's total cases.
const (
	DefaultRedThreshold  = 10.0
	DefaultBlueThreshold = 4.0
)

// Thresholds are the percentage cutoffs the aggregation feed uses to assign
// tiers. They belong to the feed; the map side only consumes the result.
type Thresholds struct {
	Red  float64 `yaml:"red_threshold" mapstructure:"red_threshold"`
	Blue float64 `yaml:"blue_threshold" mapstructure:"blue_threshold"`
}

// DefaultThresholds returns the stock 10% / 4% cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Red: DefaultRedThreshold, Blue: DefaultBlueThreshold}
}

// Validate checks that 0 <= blue <= red <= 100.
func (t Thresholds) Validate() error {
	if t.Blue < 0 || t.Red > 100 || t.Blue > t.Red {
		return eris.Errorf("zone: invalid thresholds red=%v blue=%v", t.Red, t.Blue)
	}
	return nil
}

// Classify returns the tier for a percentage.
// Rules:
//   - red: percentage >= red cutoff
//   - blue: blue cutoff <= percentage < red cutoff
//   - green: percentage < blue cutoff
func (t Thresholds) Classify(percentage float64) Tier {
	if percentage >= t.Red {
		return TierRed
	}
	if percentage >= t.Blue {
		return TierBlue
	}
	return TierGreen
}

// Stat builds the full statistic for a region from its count and percentage.
func (t Thresholds) Stat(count int, percentage float64) Stat {
	tier := t.Classify(percentage)
	return Stat{
		Count:      count,
		Percentage: percentage,
		ZoneType:   tier,
		Color:      tier.Color(),
	}
}

// LegendEntry is one row of the map legend.
type LegendEntry struct {
	Tier  Tier   `json:"tier"`
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend returns the legend rows, highest tier first.
func Legend(t Thresholds) []LegendEntry {
	red, blue := pct(t.Red), pct(t.Blue)
	return []LegendEntry{
		{Tier: TierRed, Color: ColorRed, Label: fmt.Sprintf("Red Zone (≥ %s%%)", red)},
		{Tier: TierBlue, Color: ColorBlue, Label: fmt.Sprintf("Blue Zone (%s-%s%%)", blue, red)},
		{Tier: TierGreen, Color: ColorGreen, Label: fmt.Sprintf("Green Zone (< %s%%)", blue)},
	}
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
