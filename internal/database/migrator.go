package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// Migrator applies the SQL migrations under migrations/ to the cache database.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator creates a migrator bound to db and the given migrations directory.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("component", "migrator").Logger(),
	}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative.
func (m *Migrator) Steps(n int) error {
	err := m.run(fmt.Sprintf("steps(%d)", n), func() error { return m.migrate.Steps(n) })
	if errors.Is(err, os.ErrNotExist) {
		// Stepping past the newest or oldest file.
		m.logger.Info().Int("steps", n).Msg("no more migrations available")
		return nil
	}
	return err
}

func (m *Migrator) run(action string, fn func() error) error {
	m.logger.Info().Str("action", action).Msg("applying migrations")

	if err := fn(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Str("action", action).Msg("schema already current")
			return nil
		}
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	m.logger.Info().Str("action", action).Msg("migrations applied")
	return nil
}

// Version returns the current migration version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force sets the recorded version without running migrations, clearing a dirty flag.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	return m.migrate.Force(version)
}

// Close releases the migration source and the sql.DB wrapper around the pool.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return errors.Join(sourceErr, dbErr)
}
