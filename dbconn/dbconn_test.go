package dbconn

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		in       string
		expected string
	}{
		{desc: "bare path", in: "/tmp/a.db", expected: "file:/tmp/a.db?mode=ro"},
		{desc: "file uri", in: "file:/tmp/a.db", expected: "file:/tmp/a.db?mode=ro"},
		{desc: "sqlite scheme", in: "sqlite:///tmp/a.db", expected: "file:/tmp/a.db?mode=ro"},
		{desc: "sqlite3 scheme", in: "sqlite3:///tmp/a.db", expected: "file:/tmp/a.db?mode=ro"},
		{desc: "existing query params", in: "file:/tmp/a.db?cache=shared", expected: "file:/tmp/a.db?cache=shared&mode=ro"},
		{desc: "explicit mode kept", in: "file:/tmp/a.db?mode=rw", expected: "file:/tmp/a.db?mode=rw"},
		{desc: "memory untouched", in: "file::memory:?cache=shared", expected: "file::memory:?cache=shared"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expected, sqliteDSN(tc.in))
		})
	}
}

func TestConnectDispatch(t *testing.T) {
	ctx := context.Background()

	_, err := Connect(ctx, "", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConnection))

	_, err = Connect(ctx, "", "oracle://localhost/db")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unrecognised scheme")

	conn, err := Connect(ctx, "src", "file::memory:")
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()
	require.Equal(t, ID("src"), conn.ID())
	require.Equal(t, "SQLite", conn.Dialect())
}

func TestConnectSQLiteMissingFile(t *testing.T) {
	ctx := context.Background()
	_, err := ConnectSQLite(ctx, "src", "/nonexistent/nope.db")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConnection))
}

func TestMySQLConfig(t *testing.T) {
	cfg, err := mysqlConfig("mysql://user:pw@localhost:3306/testdb")
	require.NoError(t, err)
	require.Equal(t, "user", cfg.User)
	require.Equal(t, "pw", cfg.Passwd)
	require.Equal(t, "localhost:3306", cfg.Addr)
	require.Equal(t, "testdb", cfg.DBName)

	cfg, err = mysqlConfig("root@tcp(localhost:3306)/defaultdb")
	require.NoError(t, err)
	require.Equal(t, "defaultdb", cfg.DBName)
}
