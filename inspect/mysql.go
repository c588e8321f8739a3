package inspect

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
)

func mysqlTables(ctx context.Context, conn *dbconn.MySQLConn) ([]dbtable.Name, error) {
	rows, err := conn.DB.QueryContext(
		ctx,
		`SELECT table_name FROM information_schema.tables
WHERE table_schema = database() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
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

func mysqlTableMeta(
	ctx context.Context, conn *dbconn.MySQLConn, name dbtable.Name,
) (dbtable.TableMeta, error) {
	meta := dbtable.TableMeta{Name: name}

	rows, err := conn.DB.QueryContext(
		ctx,
		`SELECT column_name, column_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = database() AND table_name = ?
ORDER BY ordinal_position`,
		string(name),
	)
	if err != nil {
		return dbtable.TableMeta{}, err
	}
	for rows.Next() {
		var cm dbtable.ColumnMeta
		var isNullable string
		var dflt sql.NullString
		if err := rows.Scan(&cm.Name, &cm.Type, &isNullable, &dflt); err != nil {
			rows.Close()
			return dbtable.TableMeta{}, errors.Wrap(err, "error decoding column metadata")
		}
		cm.NotNull = isNullable == "NO"
		if dflt.Valid {
			s := dflt.String
			cm.Default = &s
		}
		meta.Columns = append(meta.Columns, cm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return dbtable.TableMeta{}, errors.Wrap(err, "error collecting column metadata")
	}
	if len(meta.Columns) == 0 {
		return meta, nil
	}

	pkRows, err := conn.DB.QueryContext(
		ctx,
		`SELECT k.column_name
FROM information_schema.table_constraints t
JOIN information_schema.key_column_usage k
USING (constraint_name, table_schema, table_name)
WHERE t.constraint_type = 'PRIMARY KEY'
  AND t.table_schema = database()
  AND t.table_name = ?
ORDER BY k.ordinal_position`,
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
