package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var embeddedMigrations embed.FS

// runMigrations applies the embedded migrations for dialect. It opens its
// own *sql.DB because closing the migrator closes the database handle.
func runMigrations(driverName, dsn, dialect string, logger *log.Logger) error {
	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("sql.Open %s: %w", driverName, err)
	}
	defer sqldb.Close()

	var driver database.Driver
	switch dialect {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(sqldb, &migratesqlite.Config{})
	case "postgres":
		driver, err = migratepg.WithInstance(sqldb, &migratepg.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(sqldb, &migratemysql.Config{})
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("%s migrate driver: %w", dialect, err)
	}

	src, err := iofs.New(embeddedMigrations, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Printf("[Migrate] %s schema up to date", dialect)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Printf("[Migrate] %s schema migrated to version %d", dialect, version)
	return nil
}
