package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/triagemap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// connPragmas are applied by the driver to every pooled connection;
// foreign_keys in particular is per-connection in SQLite.
var connPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends the per-connection pragmas to a path or file: URI.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// NewSQLite opens a SQLite database at the given path in WAL mode with
// foreign keys enforced.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: enable WAL")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS diseases (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS cases (
	id             TEXT PRIMARY KEY,
	disease_id     INTEGER NOT NULL REFERENCES diseases(id),
	severity_level INTEGER NOT NULL CHECK (severity_level BETWEEN 1 AND 5),
	location       TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cases_disease_location ON cases(disease_id, location);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, d := range model.SeedDiseases {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO diseases (id, name) VALUES (?, ?)`, d.ID, d.Name,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed disease %d", d.ID)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListDiseases(ctx context.Context) ([]model.Disease, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM diseases ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list diseases")
	}
	defer rows.Close() //nolint:errcheck

	diseases := []model.Disease{}
	for rows.Next() {
		var d model.Disease
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan disease")
		}
		diseases = append(diseases, d)
	}
	return diseases, eris.Wrap(rows.Err(), "sqlite: list diseases iterate")
}

func (s *SQLiteStore) AddCase(ctx context.Context, c model.Case) (*model.Case, error) {
	c, err := prepareCase(c, time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: add case")
	}
	if err := insertCase(ctx, s.db, c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) AddCases(ctx context.Context, cases []model.Case) (int, error) {
	prepared, err := prepareCases(cases)
	if err != nil {
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range prepared {
		if err := insertCase(ctx, tx, c); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit cases")
	}
	return len(prepared), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCase(ctx context.Context, ex execer, c model.Case) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO cases (id, disease_id, severity_level, location, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.DiseaseID, int(c.SeverityLevel), c.Location, c.Confidence, c.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert case %s", c.ID)
}

func (s *SQLiteStore) LocationCounts(ctx context.Context, diseaseID int) ([]model.LocationCount, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cases WHERE disease_id = ?`, diseaseID,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: count cases for disease %d", diseaseID)
	}
	if total == 0 {
		return []model.LocationCount{}, 0, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT location, COUNT(*) FROM cases
		 WHERE disease_id = ? AND TRIM(location) != ''
		 GROUP BY location ORDER BY location`,
		diseaseID,
	)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: location counts for disease %d", diseaseID)
	}
	defer rows.Close() //nolint:errcheck

	counts := []model.LocationCount{}
	for rows.Next() {
		var lc model.LocationCount
		if err := rows.Scan(&lc.Location, &lc.Count); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan location count")
		}
		counts = append(counts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: location counts iterate")
	}
	return counts, total, nil
}
