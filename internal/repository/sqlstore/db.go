// Package sqlstore implements the repository interfaces on database/sql.
//
// TWO BACKENDS, ONE CODE PATH:
// The DATABASE_URL scheme picks the driver:
//   - sqlite://path/to/file.db  → modernc.org/sqlite (pure Go, no CGo)
//   - postgres://… / postgresql://… → github.com/jackc/pgx/v5/stdlib
//
// Queries are written once with "?" placeholders. rebind rewrites them to
// PostgreSQL's $1, $2, … form when needed. Everything else used here
// (RETURNING, LOWER, LIKE … ESCAPE, LIMIT/OFFSET) is portable between the two.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB   : a connection pool (NOT a single connection!)
//   - sql.Tx   : a transaction bound to one connection
//   - sql.Row  : a single result row, read with Scan
//   - sql.Rows : multiple result rows (must be closed!)
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	// BLANK IMPORT:
	// pgx's stdlib package registers itself with database/sql as "pgx" in
	// its init() function. modernc.org/sqlite registers "sqlite" the same
	// way; it is imported by name in errors.go for its error type.
	_ "github.com/jackc/pgx/v5/stdlib"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// RetryPolicy bounds how often a transient storage failure is retried.
// Attempts grow exponentially from BaseDelay.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts starting at 200ms.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}

// Options configure Open.
type Options struct {
	Retry  RetryPolicy
	Logger *slog.Logger
}

// DB wraps a sql.DB connection pool and implements both
// repository.UserRepository and repository.BookmarkRepository.
//
// There is no package-level state: cmd/server opens one DB and injects it.
type DB struct {
	conn    *sql.DB
	dialect dialect
	retry   RetryPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// target is a parsed DATABASE_URL.
type target struct {
	dialect dialect
	driver  string
	dsn     string
	path    string // sqlite file path, "" for postgres
}

func parseDatabaseURL(databaseURL string) (target, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			return target{}, errors.New("sqlstore: sqlite URL has no path")
		}
		// Pragmas in the DSN apply to every connection the pool opens.
		// Foreign keys are OFF by default in SQLite; WAL lets readers run
		// while a write is in progress; busy_timeout makes a locked
		// database wait instead of failing immediately.
		dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		return target{dialect: dialectSQLite, driver: "sqlite", dsn: dsn, path: path}, nil

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return target{dialect: dialectPostgres, driver: "pgx", dsn: databaseURL}, nil

	default:
		return target{}, fmt.Errorf("sqlstore: unsupported database URL %q", redact(databaseURL))
	}
}

// Open connects to databaseURL and verifies the connection. The initial ping
// is retried under opts.Retry, so a database that is still starting up is
// waited for rather than treated as fatal.
func Open(ctx context.Context, databaseURL string, opts Options) (*DB, error) {
	t, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if t.dialect == dialectSQLite {
		if err := ensureSQLiteDir(t.path); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(t.driver, t.dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s: %w", t.dialect, err)
	}

	if t.dialect == dialectSQLite {
		// SQLite allows one writer at a time. A single pooled connection
		// serializes writes in Go instead of surfacing SQLITE_BUSY, and
		// keeps ":memory:" databases alive across calls.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetConnMaxIdleTime(5 * time.Minute)
		conn.SetConnMaxLifetime(30 * time.Minute)
		conn.SetMaxIdleConns(10)
		conn.SetMaxOpenConns(20)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	db := &DB{
		conn:    conn,
		dialect: t.dialect,
		retry:   retry,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, conn.PingContext(ctx)
	}, backoff.WithBackOff(db.newBackOff()), backoff.WithMaxTries(retry.MaxAttempts))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s: %w", t.dialect, err)
	}

	logger.Info("database connected", slog.String("dialect", t.dialect.String()))
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /health.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func ensureSQLiteDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlstore: creating database directory %s: %w", dir, err)
	}
	return nil
}

// redact drops the userinfo part of a URL so it can be logged.
func redact(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}

// rebind turns "?" placeholders into "$n" for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// forUpdate locks the selected row until the transaction ends. SQLite has
// no row locks (the single connection already serializes writers).
func (db *DB) forUpdate() string {
	if db.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (db *DB) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if db.retry.BaseDelay > 0 {
		b.InitialInterval = db.retry.BaseDelay
	}
	return b
}

// withRetry runs fn, retrying it while it fails with a transient error.
// Anything else (constraint violations, not-found, validation) is returned
// after the first attempt.
func withRetry[T any](ctx context.Context, db *DB, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		db.logger.Warn("transient database error",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return v, err
	}, backoff.WithBackOff(db.newBackOff()), backoff.WithMaxTries(db.retry.MaxAttempts))
}

// inTx runs fn inside one transaction. The deferred Rollback is a no-op
// once Commit has succeeded.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nullable converts an optional value into a driver argument: nil becomes
// SQL NULL, anything else is dereferenced.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
