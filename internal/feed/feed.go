// Package feed produces the per-disease region statistics the map is colored
// from, either by aggregating the local case store or by calling a remote
// aggregation endpoint.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/triagemap/internal/model"
	"github.com/sells-group/triagemap/internal/zone"
)

// Response is the feed payload for one disease.
type Response struct {
	Regions       zone.Stats `json:"regions"`
	TotalPatients int        `json:"total_patients"`
}

// Source fetches the region statistics for a disease.
type Source interface {
	Fetch(ctx context.Context, diseaseID int) (*Response, error)
}

// Error is a feed failure scoped to the disease that was requested.
type Error struct {
	DiseaseID int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed: disease %d: %v", e.DiseaseID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Aggregate turns per-location case counts into region statistics. Each
// region's percentage is its share of total, classified with t. Blank
// locations are skipped and repeated locations are summed. A non-positive
// total yields an empty, non-nil result.
func Aggregate(counts []model.LocationCount, total int, t zone.Thresholds) zone.Stats {
	stats := zone.Stats{}
	if total <= 0 {
		return stats
	}

	sums := make(map[string]int, len(counts))
	for _, c := range counts {
		name := strings.TrimSpace(c.Location)
		if name == "" || c.Count <= 0 {
			continue
		}
		sums[name] += c.Count
	}

	for name, n := range sums {
		stats[name] = t.Stat(n, float64(n)/float64(total)*100)
	}
	return stats
}
