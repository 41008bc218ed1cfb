package testutil

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewMockDB returns a postgres-flavoured sqlx handle backed by sqlmock.
// Unmet expectations fail the test at cleanup.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), m
}
