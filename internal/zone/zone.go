// Package zone holds the risk tiers assigned to regions per disease and the
// map styles derived from them.
package zone

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Tier is a region's risk classification for one disease.
type Tier string

// Risk tiers, highest first.
const (
	TierRed   Tier = "red"
	TierBlue  Tier = "blue"
	TierGreen Tier = "green"
)

// Display colors bound to each tier.
const (
	ColorRed         = "#FF4D4F"
	ColorBlue        = "#1890FF"
	ColorGreen       = "#52C41A"
	ColorPlaceholder = "#CCCCCC"
)

// ParseTier parses a tier name. Anything other than red, blue or green is an
// error; there is no unclassified tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierRed, TierBlue, TierGreen:
		return t, nil
	default:
		return "", eris.Errorf("zone: unknown tier %q", s)
	}
}

// Color returns the display color for the tier.
func (t Tier) Color() string {
	switch t {
	case TierRed:
		return ColorRed
	case TierBlue:
		return ColorBlue
	default:
		return ColorGreen
	}
}

// UnmarshalJSON rejects unknown tier names.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "zone: decode tier")
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Stat is one region's case statistics for the selected disease.
type Stat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	ZoneType   Tier    `json:"zone_type"`
	Color      string  `json:"color"`
}

// Validate rejects a stat with no tier or a negative count or percentage.
func (s Stat) Validate() error {
	switch s.ZoneType {
	case TierRed, TierBlue, TierGreen:
	case "":
		return eris.New("zone: missing zone_type")
	default:
		return eris.Errorf("zone: unknown tier %q", s.ZoneType)
	}
	if s.Count < 0 {
		return eris.Errorf("zone: negative count %d", s.Count)
	}
	if s.Percentage < 0 || s.Percentage > 100 {
		return eris.Errorf("zone: percentage %v outside [0, 100]", s.Percentage)
	}
	return nil
}

// ZeroStat is the implicit statistic of a region with no recorded cases.
func ZeroStat() Stat {
	return Stat{ZoneType: TierGreen, Color: ColorGreen}
}

// Stats maps region name to its statistic. A nil Stats means the feed has not
// been loaded; an empty non-nil Stats means no region has recorded cases.
type Stats map[string]Stat
