// Package inspect reads table and column metadata from a live connection.
// Results are cached for the life of the Inspector, so a comparison sees
// one stable snapshot of each schema even while rows stream.
package inspect

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
	"github.com/opendpm/dbdiff/rowiterator"
)

// ErrSchema marks errors for schema objects that do not exist.
var ErrSchema = errors.New("schema object not found")

type Inspector struct {
	conn dbconn.Conn

	mu     sync.Mutex
	tables []dbtable.Name
	metas  map[string]dbtable.TableMeta
}

func NewInspector(conn dbconn.Conn) *Inspector {
	return &Inspector{
		conn:  conn,
		metas: make(map[string]dbtable.TableMeta),
	}
}

func (i *Inspector) Conn() dbconn.Conn {
	return i.conn
}

// Tables returns the user table names of the connected database, sorted
// case-insensitively. System tables are excluded on every dialect.
func (i *Inspector) Tables(ctx context.Context) ([]dbtable.Name, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tables != nil {
		return i.tables, nil
	}

	var (
		names []dbtable.Name
		err   error
	)
	switch conn := i.conn.(type) {
	case *dbconn.SQLiteConn:
		names, err = sqliteTables(ctx, conn)
	case *dbconn.PGConn:
		names, err = pgTables(ctx, conn)
	case *dbconn.MySQLConn:
		names, err = mysqlTables(ctx, conn)
	default:
		return nil, errors.Newf("connection %T not supported", conn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error listing tables on %s", i.conn.ID())
	}
	sort.Slice(names, func(a, b int) bool {
		return names[a].Less(names[b])
	})
	i.tables = names
	return names, nil
}

// TableMeta returns the column and primary key metadata for one table.
// A missing table reports an error marked with ErrSchema.
func (i *Inspector) TableMeta(ctx context.Context, name dbtable.Name) (dbtable.TableMeta, error) {
	key := strings.ToLower(string(name))
	i.mu.Lock()
	defer i.mu.Unlock()
	if meta, ok := i.metas[key]; ok {
		return meta, nil
	}

	var (
		meta dbtable.TableMeta
		err  error
	)
	switch conn := i.conn.(type) {
	case *dbconn.SQLiteConn:
		meta, err = sqliteTableMeta(ctx, conn, name)
	case *dbconn.PGConn:
		meta, err = pgTableMeta(ctx, conn, name)
	case *dbconn.MySQLConn:
		meta, err = mysqlTableMeta(ctx, conn, name)
	default:
		return dbtable.TableMeta{}, errors.Newf("connection %T not supported", conn)
	}
	if err != nil {
		return dbtable.TableMeta{}, errors.Wrapf(err, "error inspecting table %s on %s", name, i.conn.ID())
	}
	if len(meta.Columns) == 0 {
		return dbtable.TableMeta{}, errors.Mark(
			errors.Newf("table %s does not exist on %s", name, i.conn.ID()),
			ErrSchema,
		)
	}
	i.metas[key] = meta
	return meta, nil
}

// Rows opens a streaming iterator over the table. Keyset pagination is only
// sound when the key is unique and non-nullable on this side, so the caller
// chooses between the paginated plan and a single ordered query.
func (i *Inspector) Rows(
	ctx context.Context,
	table rowiterator.Table,
	rowBatchSize int,
	limiter *rate.Limiter,
	paginated bool,
) (rowiterator.Iterator, error) {
	if paginated {
		return rowiterator.NewScanIterator(ctx, i.conn, table, rowBatchSize, limiter)
	}
	return rowiterator.NewQueryIterator(ctx, i.conn, table)
}

// markPrimaryKey sets the PrimaryKey flag on every column named in pk.
func markPrimaryKey(cols []dbtable.ColumnMeta, pk []string) {
	for _, k := range pk {
		for i := range cols {
			if strings.EqualFold(cols[i].Name, k) {
				cols[i].PrimaryKey = true
				break
			}
		}
	}
}
