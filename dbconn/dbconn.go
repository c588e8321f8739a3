// Package dbconn provides read-only connection handles for the database
// dialects dbdiff can compare. Connections are dependency-injected into the
// inspection and comparison layers, which never construct engines
// themselves.
package dbconn

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/opendpm/dbdiff/retry"
)

type ID string

// OrderedConns is the (source, target) connection pair. Index 0 is always
// the source ("old") database.
type OrderedConns [2]Conn

// ErrConnection marks fatal connection-level failures. A marked error aborts
// the whole comparison; see the propagation policy in compare.
var ErrConnection = errors.New("database connection unusable")

type Conn interface {
	ID() ID
	// Close closes the connection.
	Close(ctx context.Context) error
	// Clone creates a new Conn with the same underlying connection arguments.
	Clone(ctx context.Context) (Conn, error)
	Database() string

	ConnStr() string
	Dialect() string
}

type Config struct {
	Source string
	Target string
}

// Connect dispatches on the connection string: postgres:// and mysql://
// URLs go to their dialect drivers, everything else (file paths, file: and
// sqlite: URIs) is treated as a SQLite database.
func Connect(ctx context.Context, preferredID ID, connStr string) (Conn, error) {
	if len(connStr) == 0 {
		return nil, errors.Mark(errors.Newf("empty connection string"), ErrConnection)
	}

	scheme, _, found := strings.Cut(connStr, "://")
	if found {
		switch {
		case strings.Contains(scheme, "postgres"):
			return ConnectPG(ctx, preferredID, connStr)
		case strings.Contains(scheme, "mysql"):
			return ConnectMySQL(ctx, preferredID, connStr)
		case scheme == "file" || strings.Contains(scheme, "sqlite"):
			return ConnectSQLite(ctx, preferredID, connStr)
		}
		return nil, errors.Newf("unrecognised scheme %s from %s", scheme, connStr)
	}
	return ConnectSQLite(ctx, preferredID, connStr)
}

// ConnectWithRetry is Connect with exponential backoff, for databases that
// may still be coming up when the comparison starts.
func ConnectWithRetry(
	ctx context.Context, preferredID ID, connStr string, settings retry.Settings,
) (Conn, error) {
	r, err := retry.NewRetry(settings)
	if err != nil {
		return nil, err
	}
	var conn Conn
	var connErr error
	for {
		conn, connErr = Connect(ctx, preferredID, connStr)
		if connErr == nil {
			return conn, nil
		}
		if !r.ShouldContinue() {
			break
		}
		r.Next()
		select {
		case <-ctx.Done():
			return nil, errors.CombineErrors(ctx.Err(), connErr)
		case <-time.After(time.Until(r.NextRetry)):
		}
	}
	return nil, connErr
}
