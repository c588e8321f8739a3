package dbconn

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
)

type MySQLConn struct {
	id      ID
	connStr string
	*sql.DB
	database string
}

var _ Conn = (*MySQLConn)(nil)

func ConnectMySQL(ctx context.Context, id ID, connStr string) (*MySQLConn, error) {
	cfg, err := mysqlConfig(connStr)
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Mark(err, ErrConnection)
	}
	if id == "" {
		id = ID(cfg.Addr + ":" + cfg.DBName)
	}
	return NewMySQLConn(id, connStr, db, cfg.DBName), nil
}

// NewMySQLConn wraps an existing database/sql handle. Exposed so tests can
// substitute a sqlmock-backed DB.
func NewMySQLConn(id ID, connStr string, db *sql.DB, database string) *MySQLConn {
	return &MySQLConn{id: id, connStr: connStr, DB: db, database: database}
}

// mysqlConfig accepts either a go-sql-driver DSN or a mysql:// URL.
func mysqlConfig(connStr string) (*mysql.Config, error) {
	if !strings.HasPrefix(connStr, "mysql://") {
		return mysql.ParseDSN(connStr)
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse url: %s", connStr)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	return cfg, nil
}

func (c *MySQLConn) ID() ID {
	return c.id
}

func (c *MySQLConn) Close(ctx context.Context) error {
	return c.DB.Close()
}

func (c *MySQLConn) Clone(ctx context.Context) (Conn, error) {
	return ConnectMySQL(ctx, c.id, c.connStr)
}

func (c *MySQLConn) Database() string {
	return c.database
}

func (c *MySQLConn) ConnStr() string {
	return c.connStr
}

func (c *MySQLConn) Dialect() string {
	return "MySQL"
}
