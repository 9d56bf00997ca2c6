package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/triagemap/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func addCases(t *testing.T, st Store, diseaseID int, locations ...string) {
	t.Helper()
	for _, loc := range locations {
		_, err := st.AddCase(context.Background(), model.Case{
			DiseaseID:     diseaseID,
			SeverityLevel: model.SeverityMedium,
			Location:      loc,
			Confidence:    0.8,
		})
		require.NoError(t, err)
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))

	diseases, err := st.ListDiseases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SeedDiseases, diseases)
}

func TestSQLite_AddCase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	c, err := st.AddCase(ctx, model.Case{
		DiseaseID:     1,
		SeverityLevel: model.SeverityCritical,
		Location:      "  Lahore ",
		Confidence:    0.93,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Lahore", c.Location)
	assert.True(t, c.CreatedAt.After(before))

	counts, total, err := st.LocationCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []model.LocationCount{{Location: "Lahore", Count: 1}}, counts)
}

func TestSQLite_AddCase_Invalid(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.AddCase(context.Background(), model.Case{DiseaseID: 1, SeverityLevel: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid severity level")
}

func TestSQLite_LocationCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	addCases(t, st, 1, "Lahore", "Lahore", "Lahore", "Karachi", "", "   ")
	addCases(t, st, 2, "Quetta")

	counts, total, err := st.LocationCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, total, "blank locations still count toward the total")
	assert.Equal(t, []model.LocationCount{
		{Location: "Karachi", Count: 1},
		{Location: "Lahore", Count: 3},
	}, counts)
}

func TestSQLite_LocationCounts_NoCases(t *testing.T) {
	st := newTestSQLiteStore(t)

	counts, total, err := st.LocationCounts(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, counts)
	assert.Empty(t, counts)
}

func TestSQLite_LocationCounts_NormalizesUnicode(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Precomposed and decomposed forms of the same name.
	addCases(t, st, 4, "Mult\u0101n", "Multa\u0304n")

	counts, total, err := st.LocationCounts(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)
}

func TestSQLite_AddCases(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.AddCases(ctx, []model.Case{
		{DiseaseID: 5, SeverityLevel: model.SeverityLow, Location: "Peshawar"},
		{DiseaseID: 5, SeverityLevel: model.SeverityMinimal, Location: "Peshawar"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.AddCases(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_AddCases_InvalidRowAbortsBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AddCases(ctx, []model.Case{
		{DiseaseID: 5, SeverityLevel: model.SeverityLow, Location: "Peshawar"},
		{DiseaseID: 5, SeverityLevel: 0, Location: "Peshawar"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case 2")

	_, total, err := st.LocationCounts(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSQLite_RejectsUnknownDisease(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AddCase(ctx, model.Case{DiseaseID: 99, SeverityLevel: model.SeverityLow, Location: "Lahore"})
	require.Error(t, err)

	_, err = st.AddCases(ctx, []model.Case{
		{DiseaseID: 1, SeverityLevel: model.SeverityLow, Location: "Lahore"},
		{DiseaseID: 42, SeverityLevel: model.SeverityLow, Location: "Karachi"},
	})
	require.Error(t, err)

	counts, total, err := st.LocationCounts(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, total, "failed batch leaves no rows")
	assert.Empty(t, counts)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"cases.db?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		sqliteDSN("cases.db"))
	assert.Equal(t,
		"file:cases.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		sqliteDSN("file:cases.db?mode=rwc"))
}
