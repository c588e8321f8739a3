package dbconn

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConn wraps a read-only SQLite handle. Connection strings without an
// explicit mode are opened mode=ro so a comparison can never mutate its
// inputs.
type SQLiteConn struct {
	id      ID
	connStr string
	*sql.DB
	database string
}

var _ Conn = (*SQLiteConn)(nil)

func ConnectSQLite(ctx context.Context, id ID, connStr string) (*SQLiteConn, error) {
	dsn := sqliteDSN(connStr)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "error opening %s", dsn), ErrConnection)
	}
	database := strings.TrimSuffix(filepath.Base(strings.TrimPrefix(dsn, "file:")), filepath.Ext(dsn))
	if id == "" {
		id = ID(database)
	}
	return &SQLiteConn{id: id, connStr: connStr, DB: db, database: database}, nil
}

// sqliteDSN normalizes a path, sqlite:// URL or file: URI into a
// go-sqlite3 DSN, forcing read-only mode unless one was given.
func sqliteDSN(connStr string) string {
	dsn := connStr
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(dsn, prefix) {
			dsn = "file:" + strings.TrimPrefix(dsn, prefix)
			break
		}
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "mode=") || strings.Contains(dsn, ":memory:") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "mode=ro"
}

func (c *SQLiteConn) ID() ID {
	return c.id
}

func (c *SQLiteConn) Close(ctx context.Context) error {
	return c.DB.Close()
}

func (c *SQLiteConn) Clone(ctx context.Context) (Conn, error) {
	return ConnectSQLite(ctx, c.id, c.connStr)
}

func (c *SQLiteConn) Database() string {
	return c.database
}

func (c *SQLiteConn) ConnStr() string {
	return c.connStr
}

func (c *SQLiteConn) Dialect() string {
	return "SQLite"
}
