package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialects understood by Open and the migrations.
const (
	SQLite = "sqlite"
	MySQL  = "mysql"
)

const defaultPath = ".conclave/conclave.db"

// Config selects a database.
type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is a file path for sqlite or a go-sql-driver DSN for mysql.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// Open opens the database described by cfg. SQLite files get foreign keys
// and a busy timeout, and share a single connection so writers queue
// instead of failing with SQLITE_BUSY.
func Open(cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case SQLite, "":
		return openSQLite(cfg.DSN)
	case MySQL:
		return openMySQL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// Dialect normalises a driver name.
func Dialect(driver string) string {
	if driver == "" {
		return SQLite
	}
	return driver
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = defaultPath
	}
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	conn := sql.OpenDB(connector)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetMaxIdleConns(4)
	return conn, nil
}

// Ping checks the connection with a short timeout.
func Ping(ctx context.Context, conn *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.PingContext(ctx)
}
