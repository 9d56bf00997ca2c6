// Package store persists diagnosed cases and answers the per-location
// aggregates the disease feed is built from.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/triagemap/internal/model"
)

// Store defines the persistence interface for the case database.
type Store interface {
	// Diseases
	ListDiseases(ctx context.Context) ([]model.Disease, error)

	// Cases
	AddCase(ctx context.Context, c model.Case) (*model.Case, error)
	AddCases(ctx context.Context, cases []model.Case) (int, error)

	// LocationCounts returns per-location case counts for a disease, blank
	// locations excluded, and the disease's total case count (blank
	// locations included).
	LocationCounts(ctx context.Context, diseaseID int) ([]model.LocationCount, int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured store. It does not migrate.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		if dsn == "" {
			dsn = "triagemap.db"
		}
		return NewSQLite(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// NormalizeLocation trims a location and folds it to Unicode NFC so that
// visually identical names group together.
func NormalizeLocation(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// prepareCase validates c and fills in its ID, timestamp and normalized
// location.
func prepareCase(c model.Case, now time.Time) (model.Case, error) {
	if err := c.Validate(); err != nil {
		return c, err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.Location = NormalizeLocation(c.Location)
	return c, nil
}

func prepareCases(cases []model.Case) ([]model.Case, error) {
	now := time.Now().UTC()
	out := make([]model.Case, 0, len(cases))
	for i, c := range cases {
		p, err := prepareCase(c, now)
		if err != nil {
			return nil, eris.Wrapf(err, "store: case %d", i+1)
		}
		out = append(out, p)
	}
	return out, nil
}
