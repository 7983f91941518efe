// Package database applies the embedded SQL schema.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	ModeSQL  = "sql"
	ModeAuto = "auto"
)

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("create pgx driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// Up applies pending migrations. In auto mode the schema comes from the gorm
// models instead, which is what the SQLite-backed tests rely on.
func Up(db *gorm.DB, mode string, log zerolog.Logger) error {
	if mode == ModeAuto {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		log.Info().Str("mode", mode).Msg("Schema migrated")
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	m, err := newMigrate(sqlDB)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info().Str("mode", mode).Uint("version", version).Bool("dirty", dirty).Msg("Schema migrated")
	return nil
}

// Down rolls back the given number of migrations.
func Down(db *gorm.DB, steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", steps)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	m, err := newMigrate(sqlDB)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}
