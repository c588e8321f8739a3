package dbconn

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

type PGConn struct {
	id ID
	*pgx.Conn
	connStr string
}

var _ Conn = (*PGConn)(nil)

func ConnectPG(ctx context.Context, id ID, connStr string) (*PGConn, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unable to parse url: %s", connStr), ErrConnection)
	}
	if id == "" {
		id = ID(cfg.Host + ":" + cfg.Database)
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	return NewPGConn(id, conn, connStr), nil
}

func NewPGConn(id ID, conn *pgx.Conn, connStr string) *PGConn {
	return &PGConn{
		id:      id,
		Conn:    conn,
		connStr: connStr,
	}
}

func (c *PGConn) ID() ID {
	return c.id
}

func (c *PGConn) Close(ctx context.Context) error {
	return c.Conn.Close(ctx)
}

func (c *PGConn) Clone(ctx context.Context) (Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, c.Config())
	if err != nil {
		return nil, errors.Mark(err, ErrConnection)
	}
	return NewPGConn(c.id, conn, c.connStr), nil
}

func (c *PGConn) Database() string {
	return c.Config().Database
}

func (c *PGConn) ConnStr() string {
	return c.connStr
}

func (c *PGConn) Dialect() string {
	return "PostgreSQL"
}
