package inspect

import (
	"context"
	"database/sql"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
)

func sqliteTables(ctx context.Context, conn *dbconn.SQLiteConn) ([]dbtable.Name, error) {
	rows, err := conn.DB.QueryContext(
		ctx,
		`SELECT name FROM sqlite_schema
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []dbtable.Name
	for rows.Next() {
		var name dbtable.Name
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "error decoding table name")
		}
		ret = append(ret, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error collecting table names")
	}
	return ret, nil
}

func sqliteTableMeta(
	ctx context.Context, conn *dbconn.SQLiteConn, name dbtable.Name,
) (dbtable.TableMeta, error) {
	// pragma_table_info returns no rows for a missing table; the caller
	// turns the empty result into an ErrSchema error.
	rows, err := conn.DB.QueryContext(
		ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		string(name),
	)
	if err != nil {
		return dbtable.TableMeta{}, err
	}
	defer rows.Close()

	meta := dbtable.TableMeta{Name: name}
	type pkCol struct {
		name string
		pos  int
	}
	var pk []pkCol
	for rows.Next() {
		var cm dbtable.ColumnMeta
		var notNull, pkPos int
		var dflt sql.NullString
		if err := rows.Scan(&cm.Name, &cm.Type, &notNull, &dflt, &pkPos); err != nil {
			return dbtable.TableMeta{}, errors.Wrap(err, "error decoding column metadata")
		}
		cm.NotNull = notNull != 0
		if dflt.Valid {
			s := dflt.String
			cm.Default = &s
		}
		cm.PrimaryKey = pkPos > 0
		if pkPos > 0 {
			pk = append(pk, pkCol{name: cm.Name, pos: pkPos})
		}
		meta.Columns = append(meta.Columns, cm)
	}
	if err := rows.Err(); err != nil {
		return dbtable.TableMeta{}, errors.Wrap(err, "error collecting column metadata")
	}

	sort.Slice(pk, func(i, j int) bool {
		return pk[i].pos < pk[j].pos
	})
	for _, c := range pk {
		meta.PrimaryKey = append(meta.PrimaryKey, c.name)
	}
	return meta, nil
}
