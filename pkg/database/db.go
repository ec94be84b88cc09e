package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DialectSQLite, sqlx.QUESTION)
}

type Config struct {
	DSN            string
	MaxConns       int
	Timeout        time.Duration
	TimeZone       string
	ClientEncoding string
}

// ConfigFromEnv reads DB config from environment variables
func ConfigFromEnv() Config {
	dsn := os.Getenv("DATABASE_URL")
	max := 5
	tz := os.Getenv("DATABASE_TIMEZONE")
	enc := os.Getenv("DATABASE_CLIENT_ENCODING")
	return Config{DSN: dsn, MaxConns: max, Timeout: 5 * time.Second, TimeZone: tz, ClientEncoding: enc}
}

// DetectDialect infers the driver from a DSN. postgres:// URLs and key=value
// strings are PostgreSQL; sqlite:, file: and *.db paths are SQLite.
func DetectDialect(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lower == "":
		return "", fmt.Errorf("database: empty dsn")
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return DialectPostgres, nil
	case strings.HasPrefix(lower, "sqlite:") || strings.HasPrefix(lower, "file:") || lower == ":memory:":
		return DialectSQLite, nil
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("database: cannot detect dialect for dsn")
	}
}

type poolSettings struct {
	maxConns int
	lifetime time.Duration
}

// poolFor pins SQLite to one connection that is never recycled: a :memory:
// database lives exactly as long as its connection.
func poolFor(dialect string, maxConns int) poolSettings {
	if dialect == DialectSQLite {
		return poolSettings{maxConns: 1}
	}
	return poolSettings{maxConns: maxConns, lifetime: 30 * time.Minute}
}

// Connect opens a *sqlx.DB for the detected dialect and verifies
// connectivity with a ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	dialect, err := DetectDialect(cfg.DSN)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dialect == DialectSQLite {
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	}
	sqlDB, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pool := poolFor(dialect, cfg.MaxConns)
	sqlDB.SetMaxOpenConns(pool.maxConns)
	sqlDB.SetMaxIdleConns(pool.maxConns)
	sqlDB.SetConnMaxLifetime(pool.lifetime)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if dialect == DialectPostgres && (cfg.TimeZone != "" || cfg.ClientEncoding != "") {
		connCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cfg.TimeZone != "" {
			if _, err := sqlDB.ExecContext(connCtx, "SET TIME ZONE "+quoteLiteral(cfg.TimeZone)); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("set time zone: %w", err)
			}
		}
		if cfg.ClientEncoding != "" {
			if _, err := sqlDB.ExecContext(connCtx, "SET client_encoding = "+quoteLiteral(cfg.ClientEncoding)); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("set client_encoding: %w", err)
			}
		}
	}
	return sqlx.NewDb(sqlDB, dialect), nil
}

// quoteLiteral escapes single quotes and wraps the value in single quotes
// so it can be used safely in SET ... statements which don't accept
// parameter placeholders for the right-hand side.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
