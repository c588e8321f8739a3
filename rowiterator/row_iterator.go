// Package rowiterator streams table rows in ascending key order from a
// database connection. The sort is always pushed to the engine; the
// iterators here never buffer more than one page of rows.
package rowiterator

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
	"github.com/opendpm/dbdiff/dbval"
)

// Iterator is a pull-based stream of rows. The consumer controls pace;
// ceasing to pull and calling Close releases the underlying cursor without
// issuing further queries.
type Iterator interface {
	Conn() dbconn.Conn
	HasNext(ctx context.Context) bool
	Peek(ctx context.Context) dbval.Values
	Next(ctx context.Context) dbval.Values
	Error() error
	Close()
}

// Table describes the scan one iterator performs. Rows are emitted with
// values positionally aligned to ColumnNames and ordered ascending by
// KeyColumns (NULLS FIRST on every dialect).
type Table struct {
	Name             dbtable.Name
	ColumnNames      []string
	ColumnAffinities []dbval.Affinity
	KeyColumns       []string
}

// keyIndexes returns the position of each key column within ColumnNames.
func (t Table) keyIndexes() []int {
	idx := make([]int, len(t.KeyColumns))
	for i, k := range t.KeyColumns {
		idx[i] = -1
		for j, c := range t.ColumnNames {
			if c == k {
				idx[i] = j
				break
			}
		}
	}
	return idx
}

type rows interface {
	Next() bool
	Err() error
	Values() (dbval.Values, error)
	Close()
}

// sqlRows adapts a database/sql result set (SQLite, MySQL), resolving
// loosely typed driver values through column affinities.
type sqlRows struct {
	*sql.Rows
	affinities []dbval.Affinity
}

func (r *sqlRows) Values() (dbval.Values, error) {
	raw := make([]any, len(r.affinities))
	ptrs := make([]any, len(r.affinities))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.Scan(ptrs...); err != nil {
		return nil, err
	}
	vals := make(dbval.Values, len(raw))
	for i, v := range raw {
		var err error
		if vals[i], err = dbval.FromDriver(v, r.affinities[i]); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func (r *sqlRows) Close() {
	_ = r.Rows.Close()
}

// pgRows adapts a pgx result set.
type pgRows struct {
	pgx.Rows
	affinities []dbval.Affinity
}

func (r *pgRows) Values() (dbval.Values, error) {
	raw, err := r.Rows.Values()
	if err != nil {
		return nil, err
	}
	vals := make(dbval.Values, len(raw))
	for i, v := range raw {
		if vals[i], err = dbval.FromDriver(v, r.affinities[i]); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func (r *pgRows) Close() {
	r.Rows.Close()
}

func queryRows(
	ctx context.Context, conn dbconn.Conn, affinities []dbval.Affinity, q string, args []any,
) (rows, error) {
	switch conn := conn.(type) {
	case *dbconn.PGConn:
		r, err := conn.Query(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		return &pgRows{Rows: r, affinities: affinities}, nil
	case *dbconn.SQLiteConn:
		r, err := conn.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		return &sqlRows{Rows: r, affinities: affinities}, nil
	case *dbconn.MySQLConn:
		r, err := conn.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		return &sqlRows{Rows: r, affinities: affinities}, nil
	}
	return nil, errUnsupportedConn(conn)
}
