package inspect

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
)

func pgTables(ctx context.Context, conn *dbconn.PGConn) ([]dbtable.Name, error) {
	rows, err := conn.Query(
		ctx,
		`SELECT pg_class.relname
FROM pg_class
JOIN pg_namespace ON (pg_class.relnamespace = pg_namespace.oid)
WHERE relkind = 'r' AND pg_namespace.nspname = current_schema()
ORDER BY 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []dbtable.Name
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "error decoding table name")
		}
		ret = append(ret, dbtable.Name(name))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error collecting table names")
	}
	return ret, nil
}

func pgTableMeta(
	ctx context.Context, conn *dbconn.PGConn, name dbtable.Name,
) (dbtable.TableMeta, error) {
	meta := dbtable.TableMeta{Name: name}

	rows, err := conn.Query(
		ctx,
		`SELECT a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull,
       pg_get_expr(d.adbin, d.adrelid)
FROM pg_attribute a
JOIN pg_class t ON a.attrelid = t.oid
JOIN pg_namespace n ON t.relnamespace = n.oid
LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE t.relname = $1 AND n.nspname = current_schema()
  AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`,
		string(name),
	)
	if err != nil {
		return dbtable.TableMeta{}, err
	}
	for rows.Next() {
		var cm dbtable.ColumnMeta
		var dflt *string
		if err := rows.Scan(&cm.Name, &cm.Type, &cm.NotNull, &dflt); err != nil {
			rows.Close()
			return dbtable.TableMeta{}, errors.Wrap(err, "error decoding column metadata")
		}
		cm.Default = dflt
		meta.Columns = append(meta.Columns, cm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return dbtable.TableMeta{}, errors.Wrap(err, "error collecting column metadata")
	}
	if len(meta.Columns) == 0 {
		return meta, nil
	}

	pkRows, err := conn.Query(
		ctx,
		`SELECT a.attname
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE ix.indisprimary AND t.relname = $1 AND n.nspname = current_schema()
ORDER BY k.ord`,
		string(name),
	)
	if err != nil {
		return dbtable.TableMeta{}, err
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var c string
		if err := pkRows.Scan(&c); err != nil {
			return dbtable.TableMeta{}, errors.Wrap(err, "error decoding primary key")
		}
		meta.PrimaryKey = append(meta.PrimaryKey, c)
	}
	if err := pkRows.Err(); err != nil {
		return dbtable.TableMeta{}, errors.Wrap(err, "error collecting primary key")
	}
	markPrimaryKey(meta.Columns, meta.PrimaryKey)
	return meta, nil
}
