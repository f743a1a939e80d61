package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = sqlDialect{
	name:        "SQLite",
	placeholder: sq.Question,
	contains: func(search string) sq.Sqlizer {
		// instr is byte-wise, unlike LIKE which folds ASCII case.
		return sq.Expr("instr(name, ?) > 0", search)
	},
	checkViolation: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "CHECK")
	},
}

// NewSQLiteProductRepository opens (or creates) the SQLite database at
// dbPath and applies pending migrations.
func NewSQLiteProductRepository(dbPath string, opts Options) (*SQLProductRepository, error) {
	logger := opts.logger()

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)

	if err := runMigrations("sqlite", dsn, "sqlite", logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	logger.Printf("[SQLiteProductRepository] Initialized with database: %s", dbPath)
	return newSQLProductRepository(db, sqliteDialect, opts), nil
}
