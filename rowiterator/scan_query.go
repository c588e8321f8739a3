package rowiterator

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbval"
)

func errUnsupportedConn(conn dbconn.Conn) error {
	return errors.Newf("connection %T not supported", conn)
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPG
	dialectMySQL
)

func dialectOf(conn dbconn.Conn) (dialect, error) {
	switch conn.(type) {
	case *dbconn.SQLiteConn:
		return dialectSQLite, nil
	case *dbconn.PGConn:
		return dialectPG, nil
	case *dbconn.MySQLConn:
		return dialectMySQL, nil
	}
	return 0, errUnsupportedConn(conn)
}

// quoteIdent quotes an identifier for the dialect, doubling any embedded
// quote character.
func (d dialect) quoteIdent(ident string) string {
	if d == dialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d dialect) placeholder(n int) string {
	if d == dialectPG {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// orderByClause emits the ascending key ordering. SQLite and MySQL place
// NULLs first on ASC already; PostgreSQL needs it spelled out.
func (d dialect) orderByClause(keyColumns []string) string {
	var sb strings.Builder
	sb.WriteString(" ORDER BY ")
	for i, col := range keyColumns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.quoteIdent(col))
		if d == dialectPG {
			sb.WriteString(" NULLS FIRST")
		}
	}
	return sb.String()
}

// scanQuery builds the paginated scan for one table: a SELECT of all header
// columns ordered by the key, with a row-value cursor predicate resuming
// after the last key seen and a LIMIT of one batch.
type scanQuery struct {
	table     Table
	d         dialect
	batchSize int
	keyIdx    []int
}

func newScanQuery(conn dbconn.Conn, table Table, batchSize int) (scanQuery, error) {
	d, err := dialectOf(conn)
	if err != nil {
		return scanQuery{}, err
	}
	keyIdx := table.keyIndexes()
	for i, idx := range keyIdx {
		if idx < 0 {
			return scanQuery{}, errors.Newf(
				"key column %s not part of the scanned columns for table %s",
				table.KeyColumns[i], table.Name,
			)
		}
	}
	return scanQuery{table: table, d: d, batchSize: batchSize, keyIdx: keyIdx}, nil
}

func (sq scanQuery) selectClause() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, col := range sq.table.ColumnNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(sq.d.quoteIdent(col))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(sq.d.quoteIdent(string(sq.table.Name)))
	return sb.String()
}

// generate produces the page query resuming after cursor (the key values of
// the last row seen; nil on the first page).
func (sq scanQuery) generate(cursor dbval.Values) (string, []any) {
	var sb strings.Builder
	sb.WriteString(sq.selectClause())

	var args []any
	if len(cursor) > 0 {
		sb.WriteString(" WHERE ")
		if len(cursor) > 1 {
			sb.WriteByte('(')
		}
		for i, col := range sq.table.KeyColumns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sq.d.quoteIdent(col))
		}
		if len(cursor) > 1 {
			sb.WriteByte(')')
		}
		sb.WriteString(" > ")
		if len(cursor) > 1 {
			sb.WriteByte('(')
		}
		for i, v := range cursor {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sq.d.placeholder(i + 1))
			args = append(args, driverArg(v))
		}
		if len(cursor) > 1 {
			sb.WriteByte(')')
		}
	}

	sb.WriteString(sq.d.orderByClause(sq.table.KeyColumns))
	fmt.Fprintf(&sb, " LIMIT %d", sq.batchSize)
	return sb.String(), args
}

// orderedQuery is the unpaginated variant: one SELECT streaming the whole
// table in key order. Used when the key is not unique and a strict cursor
// predicate would skip duplicate rows.
func (sq scanQuery) orderedQuery() string {
	return sq.selectClause() + sq.d.orderByClause(sq.table.KeyColumns)
}

func driverArg(v dbval.Value) any {
	switch v.Kind() {
	case dbval.KindNull:
		return nil
	case dbval.KindInteger:
		return v.Int()
	case dbval.KindReal:
		return v.Real()
	case dbval.KindText:
		return v.Text()
	}
	return v.Blob()
}
