package inspect

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
)

func sqliteFixture(t *testing.T, name string, stmts []string) *Inspector {
	t.Helper()
	ctx := context.Background()
	conn, err := dbconn.ConnectSQLite(ctx, dbconn.ID(name), "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})
	for _, stmt := range stmts {
		_, err := conn.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return NewInspector(conn)
}

func TestSQLiteTables(t *testing.T) {
	insp := sqliteFixture(t, "inspect_tables", []string{
		`CREATE TABLE Zoo (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE apple (id INTEGER PRIMARY KEY)`,
		`CREATE INDEX apple_idx ON apple (id)`,
	})

	tables, err := insp.Tables(context.Background())
	require.NoError(t, err)
	require.Equal(t, []dbtable.Name{"apple", "Zoo"}, tables)
}

func TestSQLiteTableMeta(t *testing.T) {
	insp := sqliteFixture(t, "inspect_meta", []string{
		`CREATE TABLE orders (
			item_id INTEGER NOT NULL,
			order_id INTEGER NOT NULL,
			note TEXT DEFAULT 'none',
			qty INTEGER,
			PRIMARY KEY (order_id, item_id)
		)`,
	})
	ctx := context.Background()

	meta, err := insp.TableMeta(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, []string{"item_id", "order_id", "note", "qty"}, meta.ColumnNames())
	// Key order follows the PRIMARY KEY declaration, not column order.
	require.Equal(t, []string{"order_id", "item_id"}, meta.PrimaryKey)

	note, ok := meta.Column("note")
	require.True(t, ok)
	require.False(t, note.NotNull)
	require.NotNil(t, note.Default)
	require.Equal(t, `'none'`, *note.Default)
	require.False(t, note.PrimaryKey)

	orderID, ok := meta.Column("ORDER_ID")
	require.True(t, ok)
	require.True(t, orderID.NotNull)
	require.True(t, orderID.PrimaryKey)
}

func TestTableMetaMissingTable(t *testing.T) {
	insp := sqliteFixture(t, "inspect_missing", nil)

	_, err := insp.TableMeta(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSchema))
}

func TestTableMetaCached(t *testing.T) {
	insp := sqliteFixture(t, "inspect_cached", []string{
		`CREATE TABLE t (id INTEGER PRIMARY KEY)`,
	})
	ctx := context.Background()

	first, err := insp.TableMeta(ctx, "t")
	require.NoError(t, err)

	// A later schema change is invisible to the same Inspector.
	_, execErr := insp.conn.(*dbconn.SQLiteConn).DB.ExecContext(ctx, `ALTER TABLE t ADD COLUMN extra TEXT`)
	require.NoError(t, execErr)

	again, err := insp.TableMeta(ctx, "T")
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestMySQLTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("a").AddRow("b"))

	insp := NewInspector(dbconn.NewMySQLConn("mysql", "root@/app", db, "app"))
	tables, err := insp.Tables(context.Background())
	require.NoError(t, err)
	require.Equal(t, []dbtable.Name{"a", "b"}, tables)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLTableMeta(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT column_name, column_type, is_nullable, column_default`).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "is_nullable", "column_default"}).
			AddRow("id", "int(11)", "NO", nil).
			AddRow("email", "varchar(255)", "YES", "''"))
	mock.ExpectQuery(`SELECT k.column_name`).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	insp := NewInspector(dbconn.NewMySQLConn("mysql", "root@/app", db, "app"))
	meta, err := insp.TableMeta(context.Background(), "users")
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, meta.PrimaryKey)

	id, ok := meta.Column("id")
	require.True(t, ok)
	require.True(t, id.NotNull)
	require.True(t, id.PrimaryKey)
	email, ok := meta.Column("email")
	require.True(t, ok)
	require.False(t, email.NotNull)
	require.Equal(t, "''", *email.Default)
}
