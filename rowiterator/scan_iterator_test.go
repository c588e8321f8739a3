package rowiterator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbval"
)

func sqliteTestConn(t *testing.T, name string) *dbconn.SQLiteConn {
	t.Helper()
	conn, err := dbconn.ConnectSQLite(
		context.Background(),
		dbconn.ID(name),
		fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})
	return conn
}

func TestScanIteratorPaginates(t *testing.T) {
	ctx := context.Background()
	conn := sqliteTestConn(t, "scan_iterator_paginates")

	_, err := conn.DB.ExecContext(ctx, `CREATE TABLE nums (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)
	const numRows = 10
	for i := 1; i <= numRows; i++ {
		_, err := conn.DB.ExecContext(ctx, `INSERT INTO nums VALUES (?, ?)`, i, fmt.Sprintf("row-%d", i))
		require.NoError(t, err)
	}

	// A batch size of 3 forces four pages, the last one short.
	it, err := NewScanIterator(
		ctx,
		conn,
		Table{
			Name:             "nums",
			ColumnNames:      []string{"id", "label"},
			ColumnAffinities: []dbval.Affinity{dbval.AffinityInteger, dbval.AffinityText},
			KeyColumns:       []string{"id"},
		},
		3,
		rate.NewLimiter(rate.Inf, 1),
	)
	require.NoError(t, err)
	defer it.Close()

	var got []dbval.Values
	for it.HasNext(ctx) {
		peeked := it.Peek(ctx)
		row := it.Next(ctx)
		require.Equal(t, peeked, row)
		got = append(got, row)
	}
	require.NoError(t, it.Error())
	require.Len(t, got, numRows)
	for i, row := range got {
		require.Equal(t, dbval.NewInt(int64(i+1)), row[0])
		require.Equal(t, dbval.NewText(fmt.Sprintf("row-%d", i+1)), row[1])
	}
}

func TestScanIteratorEmptyTable(t *testing.T) {
	ctx := context.Background()
	conn := sqliteTestConn(t, "scan_iterator_empty")

	_, err := conn.DB.ExecContext(ctx, `CREATE TABLE empty (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	it, err := NewScanIterator(
		ctx,
		conn,
		Table{
			Name:             "empty",
			ColumnNames:      []string{"id"},
			ColumnAffinities: []dbval.Affinity{dbval.AffinityInteger},
			KeyColumns:       []string{"id"},
		},
		100,
		rate.NewLimiter(rate.Inf, 1),
	)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.HasNext(ctx))
	require.NoError(t, it.Error())
}

func TestQueryIteratorOrdersNullsFirst(t *testing.T) {
	ctx := context.Background()
	conn := sqliteTestConn(t, "query_iterator_nulls")

	_, err := conn.DB.ExecContext(ctx, `CREATE TABLE pets (name TEXT, kind TEXT)`)
	require.NoError(t, err)
	for _, row := range [][2]any{
		{"rex", "dog"},
		{nil, "cat"},
		{"abby", "dog"},
	} {
		_, err := conn.DB.ExecContext(ctx, `INSERT INTO pets VALUES (?, ?)`, row[0], row[1])
		require.NoError(t, err)
	}

	it, err := NewQueryIterator(
		ctx,
		conn,
		Table{
			Name:             "pets",
			ColumnNames:      []string{"name", "kind"},
			ColumnAffinities: []dbval.Affinity{dbval.AffinityText, dbval.AffinityText},
			KeyColumns:       []string{"name"},
		},
	)
	require.NoError(t, err)
	defer it.Close()

	var names []dbval.Value
	for it.HasNext(ctx) {
		names = append(names, it.Next(ctx)[0])
	}
	require.NoError(t, it.Error())
	require.Equal(t, []dbval.Value{dbval.Null, dbval.NewText("abby"), dbval.NewText("rex")}, names)
}
