package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var caseColumns = []string{"id", "disease_id", "location"}

func TestCopyInTx_EmptyRows(t *testing.T) {
	n, err := CopyInTx(context.TODO(), nil, "cases", caseColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyInTx_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"cases"}, caseColumns).WillReturnResult(2)
	mock.ExpectCommit()

	rows := [][]any{{"a", 1, "Lahore"}, {"b", 1, "Karachi"}}
	n, err := CopyInTx(context.Background(), mock, "cases", caseColumns, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyInTx_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("too many connections"))

	_, err = CopyInTx(context.Background(), mock, "cases", caseColumns, [][]any{{"a", 1, "Lahore"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyInTx_RollsBackOnCopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"cases"}, caseColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = CopyInTx(context.Background(), mock, "cases", caseColumns, [][]any{{"a", 1, "Lahore"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into cases")
	assert.NoError(t, mock.ExpectationsWereMet())
}
