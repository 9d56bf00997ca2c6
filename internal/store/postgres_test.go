package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/triagemap/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS diseases`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, d := range model.SeedDiseases {
		mock.ExpectExec(`INSERT INTO diseases .* ON CONFLICT \(id\) DO NOTHING`).
			WithArgs(d.ID, d.Name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(fmt.Errorf("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDiseases(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name FROM diseases ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Dengue").
			AddRow(2, "Measles"))

	diseases, err := s.ListDiseases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Disease{{ID: 1, Name: "Dengue"}, {ID: 2, Name: "Measles"}}, diseases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCase(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO cases`).
		WithArgs(pgxmock.AnyArg(), 1, 2, "Lahore", 0.7, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c, err := s.AddCase(context.Background(), model.Case{
		DiseaseID: 1, SeverityLevel: model.SeverityUrgent, Location: " Lahore", Confidence: 0.7,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Lahore", c.Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCases_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"cases"}, caseColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.AddCases(context.Background(), []model.Case{
		{DiseaseID: 1, SeverityLevel: model.SeverityLow, Location: "Lahore"},
		{DiseaseID: 1, SeverityLevel: model.SeverityLow, Location: "Karachi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LocationCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cases WHERE disease_id = \$1`).
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(100))
	mock.ExpectQuery(`SELECT location, COUNT\(\*\) FROM cases`).
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"location", "count"}).
			AddRow("Karachi", 30).
			AddRow("Lahore", 50))

	counts, total, err := s.LocationCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Equal(t, []model.LocationCount{{Location: "Karachi", Count: 30}, {Location: "Lahore", Count: 50}}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LocationCounts_ZeroTotalSkipsGrouping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cases`).
		WithArgs(9).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	counts, total, err := s.LocationCounts(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LocationCounts_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cases`).
		WithArgs(1).
		WillReturnError(fmt.Errorf("connection reset"))

	_, _, err := s.LocationCounts(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count cases for disease 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
