// Package testutils holds helpers for building in-memory SQLite fixtures
// used across the comparison tests.
package testutils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opendpm/dbdiff/dbconn"
)

// SQLiteConn opens a writable shared in-memory SQLite database. Every
// distinct name is its own database; reusing a name within one process
// attaches to the same data.
func SQLiteConn(t *testing.T, id dbconn.ID, name string) *dbconn.SQLiteConn {
	t.Helper()
	conn, err := dbconn.ConnectSQLite(
		context.Background(), id, "file:"+name+"?mode=memory&cache=shared",
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})
	return conn
}

// Exec runs each statement against the connection, failing the test on
// the first error.
func Exec(t *testing.T, conn *dbconn.SQLiteConn, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := conn.DB.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "statement: %s", stmt)
	}
}

// InsertRowGUID inserts rows into a (RowGUID, val) shaped table, minting
// a fresh identifier per row, and returns the identifiers in insertion
// order.
func InsertRowGUID(t *testing.T, conn *dbconn.SQLiteConn, table string, vals ...string) []string {
	t.Helper()
	guids := make([]string, len(vals))
	for i, v := range vals {
		guids[i] = uuid.NewString()
		_, err := conn.DB.ExecContext(
			context.Background(),
			`INSERT INTO `+table+` (RowGUID, val) VALUES (?, ?)`,
			guids[i], v,
		)
		require.NoError(t, err)
	}
	return guids
}
