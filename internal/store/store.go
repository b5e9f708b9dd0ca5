// Package store is the persistence layer: connection pooling, migrations,
// and the four short-session query patterns every other package relies on
// (config read, batch write, single-record update, read+cache). No caller
// outside this package opens a *sqlx.Tx directly.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Store wraps a pooled PostgreSQL connection. All query methods live on this
// type, grouped by entity across the other files in this package.
type Store struct {
	db *sqlx.DB
}

// Open connects to databaseURL, applies embedded migrations, and returns a
// ready-to-use Store. Connections are pooled generously relative to worker
// count since every session in this package is short-lived by construction.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// FromDB wraps an already-open *sqlx.DB, useful for tests that set up their
// own connection (e.g. against a testcontainers instance) or a sqlmock.
func FromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "yourmoment", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close(): it would close db.DB, the *sql.DB shared with
	// the live connection pool returned to the caller.
	return sourceDriver.Close()
}
