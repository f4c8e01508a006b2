package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// MigratePostgres применяет миграции схемы к PostgreSQL.
func MigratePostgres(db *DB) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("init pgx migrate driver: %w", err)
	}
	return up("migrations/postgres", "pgx5", driver, db.Logger)
}

// MigrateSQLite применяет миграции схемы к SQLite.
func MigrateSQLite(sqlDB *sql.DB, logger *zap.Logger) error {
	driver, err := sqlitemigrate.WithInstance(sqlDB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite migrate driver: %w", err)
	}
	return up("migrations/sqlite", "sqlite", driver, logger)
}

func up(dir, name string, driver database.Driver, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", dir, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("Миграции применены",
		zap.String("driver", name),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
