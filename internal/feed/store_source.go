package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/model"
	"github.com/sells-group/triagemap/internal/zone"
)

// Counter is the part of the case store the feed reads.
type Counter interface {
	LocationCounts(ctx context.Context, diseaseID int) ([]model.LocationCount, int, error)
}

// StoreSource aggregates region statistics from the local case store.
type StoreSource struct {
	counter    Counter
	thresholds zone.Thresholds
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(counter Counter, thresholds zone.Thresholds) *StoreSource {
	return &StoreSource{counter: counter, thresholds: thresholds}
}

// Thresholds returns the tier cutoffs this source classifies with.
func (s *StoreSource) Thresholds() zone.Thresholds {
	return s.thresholds
}

// Fetch aggregates the disease's cases into a feed Response.
func (s *StoreSource) Fetch(ctx context.Context, diseaseID int) (*Response, error) {
	counts, total, err := s.counter.LocationCounts(ctx, diseaseID)
	if err != nil {
		zap.L().Error("feed: store aggregation failed", zap.Int("disease_id", diseaseID), zap.Error(err))
		return nil, &Error{DiseaseID: diseaseID, Err: err}
	}
	return &Response{
		Regions:       Aggregate(counts, total, s.thresholds),
		TotalPatients: total,
	}, nil
}
