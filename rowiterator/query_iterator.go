package rowiterator

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbval"
)

// queryIterator streams one ordered SELECT through the driver cursor,
// holding a single look-ahead row. It tolerates duplicate and NULL key
// values, which the paginated scanIterator cannot.
type queryIterator struct {
	conn dbconn.Conn
	rows rows

	peeked dbval.Values
	err    error
	done   bool
}

// NewQueryIterator returns a row iterator streaming the whole table in key
// order through a single query.
func NewQueryIterator(ctx context.Context, conn dbconn.Conn, table Table) (Iterator, error) {
	sq, err := newScanQuery(conn, table, 1)
	if err != nil {
		return nil, err
	}
	r, err := queryRows(ctx, conn, table.ColumnAffinities, sq.orderedQuery(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting rows for table %s from %s", table.Name, conn.ID())
	}
	return &queryIterator{conn: conn, rows: r}, nil
}

func (it *queryIterator) Conn() dbconn.Conn {
	return it.conn
}

func (it *queryIterator) HasNext(ctx context.Context) bool {
	if it.err != nil || it.done {
		return false
	}
	if it.peeked != nil {
		return true
	}
	if !it.rows.Next() {
		it.done = true
		if err := it.rows.Err(); err != nil {
			it.err = errors.Wrap(err, "error reading row")
		}
		it.rows.Close()
		return false
	}
	vals, err := it.rows.Values()
	if err != nil {
		it.err = errors.Wrap(err, "error decoding row")
		it.done = true
		it.rows.Close()
		return false
	}
	it.peeked = vals
	return true
}

func (it *queryIterator) Peek(ctx context.Context) dbval.Values {
	if it.HasNext(ctx) {
		return it.peeked
	}
	return nil
}

func (it *queryIterator) Next(ctx context.Context) dbval.Values {
	if it.HasNext(ctx) {
		ret := it.peeked
		it.peeked = nil
		return ret
	}
	return nil
}

func (it *queryIterator) Error() error {
	return it.err
}

func (it *queryIterator) Close() {
	if !it.done {
		it.done = true
		it.rows.Close()
	}
}
