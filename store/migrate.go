package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// migrateUp applies pending migrations and returns the resulting schema
// version. SQLite migrates through the store's own handle so in-memory
// databases see the schema; postgres uses a dedicated handle that is closed
// together with the migrator.
func migrateUp(db *sql.DB, driver, dsn string) (uint, error) {
	if driver == DriverSQLite {
		return migrateSQLite(db)
	}
	return migratePostgres(driver, dsn)
}

func migrateSQLite(db *sql.DB) (uint, error) {
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("store: migrate: driver: %w", err)
	}
	src, err := iofs.New(migrationFS, "migrations/sqlite3")
	if err != nil {
		return 0, fmt.Errorf("store: migrate: source: %w", err)
	}
	// m.Close would close db as well, so only the source is released
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dbDriver)
	if err != nil {
		return 0, fmt.Errorf("store: migrate: %w", err)
	}
	return runMigrations(m)
}

func migratePostgres(driver, dsn string) (uint, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return 0, fmt.Errorf("store: migrate: open: %w", err)
	}
	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("store: migrate: driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations/postgres")
	if err != nil {
		dbDriver.Close()
		return 0, fmt.Errorf("store: migrate: source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		src.Close()
		dbDriver.Close()
		return 0, fmt.Errorf("store: migrate: %w", err)
	}
	defer m.Close()
	return runMigrations(m)
}

func runMigrations(m *migrate.Migrate) (uint, error) {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("store: migrate: up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("store: migrate: version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("store: migrate: schema version %d is dirty", version)
	}
	return version, nil
}
