package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/triagemap/internal/db"
	"github.com/sells-group/triagemap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var caseColumns = []string{"id", "disease_id", "severity_level", "location", "confidence", "created_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS diseases (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS cases (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	disease_id     INTEGER NOT NULL REFERENCES diseases(id),
	severity_level SMALLINT NOT NULL CHECK (severity_level BETWEEN 1 AND 5),
	location       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_disease_location ON cases(disease_id, location);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	for _, d := range model.SeedDiseases {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO diseases (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, d.ID, d.Name,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed disease %d", d.ID)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListDiseases(ctx context.Context) ([]model.Disease, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM diseases ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list diseases")
	}
	defer rows.Close()

	diseases := []model.Disease{}
	for rows.Next() {
		var d model.Disease
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan disease")
		}
		diseases = append(diseases, d)
	}
	return diseases, eris.Wrap(rows.Err(), "postgres: list diseases iterate")
}

func (s *PostgresStore) AddCase(ctx context.Context, c model.Case) (*model.Case, error) {
	c, err := prepareCase(c, time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: add case")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO cases (id, disease_id, severity_level, location, confidence, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.DiseaseID, int(c.SeverityLevel), c.Location, c.Confidence, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert case %s", c.ID)
	}
	return &c, nil
}

// AddCases bulk-loads cases with COPY inside one transaction.
func (s *PostgresStore) AddCases(ctx context.Context, cases []model.Case) (int, error) {
	prepared, err := prepareCases(cases)
	if err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(prepared))
	for _, c := range prepared {
		rows = append(rows, []any{c.ID, c.DiseaseID, int(c.SeverityLevel), c.Location, c.Confidence, c.CreatedAt})
	}

	n, err := db.CopyInTx(ctx, s.pool, "cases", caseColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: add cases")
	}
	return int(n), nil
}

func (s *PostgresStore) LocationCounts(ctx context.Context, diseaseID int) ([]model.LocationCount, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cases WHERE disease_id = $1`, diseaseID,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: count cases for disease %d", diseaseID)
	}
	if total == 0 {
		return []model.LocationCount{}, 0, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT location, COUNT(*) FROM cases
		 WHERE disease_id = $1 AND btrim(location) <> ''
		 GROUP BY location ORDER BY location`,
		diseaseID,
	)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: location counts for disease %d", diseaseID)
	}
	defer rows.Close()

	counts := []model.LocationCount{}
	for rows.Next() {
		var lc model.LocationCount
		if err := rows.Scan(&lc.Location, &lc.Count); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan location count")
		}
		counts = append(counts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: location counts iterate")
	}
	return counts, total, nil
}
