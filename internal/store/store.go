// Package store owns the read-only connection pool to the event database.
// It hides the differences between the production PostgreSQL store and the
// SQLite database used for local development and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by queries issued after Close.
var ErrClosed = errors.New("store is closed")

const defaultMaxConns = 10

// Options configures Open.
type Options struct {
	Driver          Dialect
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DB is an explicitly owned pool of connections to the event database.
type DB struct {
	sql     *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect

	mu     sync.RWMutex
	closed bool
}

// Row is the subset of *sql.Row used by callers.
type Row interface {
	Scan(dest ...any) error
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Open creates the connection pool described by opts. Connections are
// established lazily on first use.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	switch opts.Driver {
	case Postgres, "":
		return openPostgres(ctx, opts)
	case SQLite:
		return openSQLite(opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func openPostgres(ctx context.Context, opts Options) (*DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = opts.MaxConns
	if opts.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	log.WithFields(log.Fields{
		"driver":    Postgres,
		"max_conns": poolCfg.MaxConns,
	}).Info("event store pool created")

	return &DB{
		sql:     stdlib.OpenDBFromPool(pool),
		pool:    pool,
		dialect: Postgres,
	}, nil
}

func openSQLite(opts Options) (*DB, error) {
	path := opts.DSN
	if path == "" {
		path = "analytics.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(int(opts.MaxConns))
	db.SetMaxIdleConns(int(opts.MaxConns))
	if opts.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(opts.MaxConnLifetime)
	}
	if opts.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxConnIdleTime)
	}

	log.WithFields(log.Fields{
		"driver": SQLite,
		"path":   path,
	}).Info("event store opened")

	return &DB{sql: db, dialect: SQLite}, nil
}

// Dialect reports the SQL dialect of the underlying database.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// SQL exposes the underlying *sql.DB. Intended for migrations and fixtures.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

func (db *DB) isClosed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.closed
}

// QueryContext runs a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	return db.sql.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query that is expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	if db.isClosed() {
		return errRow{err: ErrClosed}
	}
	return db.sql.QueryRowContext(ctx, query, args...)
}

// Ping verifies that a connection can be established.
func (db *DB) Ping(ctx context.Context) error {
	if db.isClosed() {
		return ErrClosed
	}
	var one int
	return db.sql.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Close releases every pooled connection. It is safe to call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	err := db.sql.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}
