package rowiterator

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbval"
)

// scanIterator pages through a table in key order using a strict row-value
// cursor predicate, prefetching the next page while the current one is
// consumed. Correct only for unique, non-nullable keys; NewQueryIterator
// covers the rest.
type scanIterator struct {
	conn         dbconn.Conn
	table        Table
	rowBatchSize int

	waitCh        chan scanIteratorResult
	cache         []dbval.Values
	keyCursor     dbval.Values
	currCacheSize int
	err           error
	closed        bool
	scanQuery     scanQuery
	rateLimiter   *rate.Limiter
}

type scanIteratorResult struct {
	r   []dbval.Values
	err error
}

// NewScanIterator returns a row iterator which scans the given table in
// batches of rowBatchSize.
func NewScanIterator(
	ctx context.Context,
	conn dbconn.Conn,
	table Table,
	rowBatchSize int,
	rateLimiter *rate.Limiter,
) (Iterator, error) {
	sq, err := newScanQuery(conn, table, rowBatchSize)
	if err != nil {
		return nil, err
	}
	it := &scanIterator{
		conn:          conn,
		table:         table,
		rowBatchSize:  rowBatchSize,
		currCacheSize: rowBatchSize,
		waitCh:        make(chan scanIteratorResult, 1),
		scanQuery:     sq,
		rateLimiter:   rateLimiter,
	}
	it.nextPage(ctx)
	return it, nil
}

func (it *scanIterator) Conn() dbconn.Conn {
	return it.conn
}

func (it *scanIterator) HasNext(ctx context.Context) bool {
	for {
		if it.err != nil || it.closed {
			return false
		}

		if len(it.cache) > 0 {
			return true
		}

		// If the last page came back short, the scan is complete.
		if it.currCacheSize < it.rowBatchSize {
			return false
		}

		res := <-it.waitCh
		if res.err != nil {
			it.err = errors.Wrap(res.err, "error getting result")
			return false
		}
		it.cache = res.r
		it.currCacheSize = len(it.cache)

		// Queue the next page immediately.
		if it.currCacheSize == it.rowBatchSize {
			it.nextPage(ctx)
		}
	}
}

// nextPage fetches the next batch asynchronously, resuming after the last
// row of the page currently in the cache.
func (it *scanIterator) nextPage(ctx context.Context) {
	if n := len(it.cache); n > 0 {
		it.keyCursor = keyOf(it.cache[n-1], it.scanQuery.keyIdx)
	}
	cursor := it.keyCursor
	go func() {
		vals, err := func() ([]dbval.Values, error) {
			if it.rateLimiter != nil {
				if err := it.rateLimiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			q, args := it.scanQuery.generate(cursor)
			currRows, err := queryRows(ctx, it.conn, it.table.ColumnAffinities, q, args)
			if err != nil {
				return nil, errors.Wrapf(err, "error getting rows for table %s from %s", it.table.Name, it.conn.ID())
			}
			defer currRows.Close()

			ret := make([]dbval.Values, 0, it.rowBatchSize)
			for currRows.Next() {
				v, err := currRows.Values()
				if err != nil {
					return nil, errors.Wrap(err, "error decoding row")
				}
				ret = append(ret, v)
			}
			return ret, currRows.Err()
		}()
		it.waitCh <- scanIteratorResult{r: vals, err: err}
	}()
}

func keyOf(row dbval.Values, keyIdx []int) dbval.Values {
	key := make(dbval.Values, len(keyIdx))
	for i, idx := range keyIdx {
		key[i] = row[idx]
	}
	return key
}

func (it *scanIterator) Peek(ctx context.Context) dbval.Values {
	if it.HasNext(ctx) {
		return it.cache[0]
	}
	return nil
}

func (it *scanIterator) Next(ctx context.Context) dbval.Values {
	if it.HasNext(ctx) {
		ret := it.cache[0]
		it.cache = it.cache[1:]
		return ret
	}
	return nil
}

func (it *scanIterator) Error() error {
	return it.err
}

func (it *scanIterator) Close() {
	it.closed = true
}
