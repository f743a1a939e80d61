package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// ER_CHECK_CONSTRAINT_VIOLATED
const mysqlCheckViolation = 3819

var mysqlDialect = sqlDialect{
	name:        "MySQL",
	placeholder: sq.Question,
	contains: func(search string) sq.Sqlizer {
		// name uses a binary collation, so LOCATE is case-sensitive.
		return sq.Expr("LOCATE(?, name) > 0", search)
	},
	checkViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == mysqlCheckViolation
	},
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// DSN returns the data source name. ClientFoundRows makes an UPDATE that
// changes nothing still report its matched row.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Name
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// NewMySQLProductRepository connects to MySQL and applies pending migrations.
func NewMySQLProductRepository(cfg MySQLConfig, opts Options) (*SQLProductRepository, error) {
	logger := opts.logger()
	dsn := cfg.DSN()

	if err := runMigrations("mysql", dsn, "mysql", logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	logger.Printf("[MySQLProductRepository] Initialized - addr:%s, db:%s", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), cfg.Name)
	return newSQLProductRepository(db, mysqlDialect, opts), nil
}
