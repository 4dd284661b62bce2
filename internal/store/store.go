// Package store persists units, scouts, adult profiles, sync sessions and
// staged reconciliation rows.
//
// The same schema runs on embedded SQLite (ncruces/go-sqlite3, the default)
// and on PostgreSQL (lib/pq). Queries are built with go-sqlbuilder using the
// flavor of the open driver, so placeholders and quoting follow the backend.
//
// Every read of unit data is filtered by unit_id and every read of staging
// data by session_id. The one deliberate exception is FindProfileByBSAID,
// which searches all profiles to link adults who belong to no unit yet.
//
// Timestamps are stored as RFC 3339 text and booleans as 0/1 integers to keep
// the schema identical on both backends.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the backend.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string

	// DSN is a file path for SQLite or a connection string for PostgreSQL.
	DSN string
}

// Store is an open database with its schema.
type Store struct {
	*Repository

	conn   *sql.DB
	driver string
}

// Open connects to the configured backend. For SQLite the parent directory
// is created if needed.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		conn   *sql.DB
		flavor sqlbuilder.Flavor
		err    error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		conn, err = sql.Open("sqlite3", sqliteDSN(cfg.DSN))
		flavor = sqlbuilder.SQLite
	case DriverPostgres:
		conn, err = sql.Open("postgres", cfg.DSN)
		flavor = sqlbuilder.PostgreSQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if driver == DriverSQLite {
		// SQLite has a single writer.
		conn.SetMaxOpenConns(1)
	}

	return &Store{
		Repository: NewRepository(conn, flavor),
		conn:       conn,
		driver:     driver,
	}, nil
}

// sqliteDSN applies WAL mode, a busy timeout and foreign keys to every
// connection the pool opens.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)"
}

// New wraps an existing connection. Used with sqlmock in tests.
func New(conn *sql.DB, flavor sqlbuilder.Flavor) *Store {
	return &Store{Repository: NewRepository(conn, flavor), conn: conn}
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if s.driver == DriverSQLite {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates all tables and indexes. It is idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repository) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(NewRepositoryTx(tx, s.flavor)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
