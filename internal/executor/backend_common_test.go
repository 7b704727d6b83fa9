package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQueryScansRowsAndCoercesByteSlices(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"SUBJECT_ID", "GENDER"}).
		AddRow(10006, []byte("F")).
		AddRow(10011, []byte("M"))
	mock.ExpectQuery("SELECT SUBJECT_ID, GENDER FROM PATIENTS").WillReturnRows(rows)

	res, err := runQuery(context.Background(), db, "SELECT SUBJECT_ID, GENDER FROM PATIENTS")
	require.NoError(t, err)

	assert.Equal(t, []string{"SUBJECT_ID", "GENDER"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "F", res.Rows[0][1])
	assert.Equal(t, "M", res.Rows[1][1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQueryPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1 FROM BAD_TABLE").WillReturnError(assert.AnError)

	_, err = runQuery(context.Background(), db, "SELECT 1 FROM BAD_TABLE")
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScalarStringReturnsSingleValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT sqlite_version").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("3.45.0"))

	v, err := scalarString(context.Background(), db, "SELECT sqlite_version()")
	require.NoError(t, err)
	assert.Equal(t, "3.45.0", v)
	require.NoError(t, mock.ExpectationsWereMet())
}
