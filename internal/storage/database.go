package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"selaski/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Open connects to the database selected by dbType using its entry in cfg.Databases.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dialect, err := DialectFor(dbType)
	if err != nil {
		return nil, err
	}
	dbCfg, ok := cfg.Databases[config.NormalizeDriver(dbType)]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	dsn, err := buildDSN(dialect, dbCfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Goose, err)
	}

	switch dialect.Goose {
	case "sqlite3":
		// An in-memory database lives in one connection; a file database
		// serialises writers anyway.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func buildDSN(dialect Dialect, dbCfg config.DatabaseConfig) (string, error) {
	switch dialect.Goose {
	case "sqlite3":
		if dbCfg.DSN == "" {
			return "", fmt.Errorf("sqlite dsn must be provided")
		}
		// foreign_keys is per connection; the driver applies DSN params to each one.
		return ensureParam(dbCfg.DSN, "_foreign_keys", "on"), nil
	case "mysql":
		if dbCfg.DSN != "" {
			return ensureParam(dbCfg.DSN, "parseTime", "true"), nil
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		return ensureParam(dsn, "parseTime", "true"), nil
	case "postgres":
		if dbCfg.DSN != "" {
			return dbCfg.DSN, nil
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(dbCfg.Username, dbCfg.Password),
			Host:     fmt.Sprintf("%s:%d", dbCfg.Host, dbCfg.Port),
			Path:     "/" + dbCfg.DBName,
			RawQuery: dbCfg.Params,
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", dialect.Goose)
	}
}

// ensureParam appends key=value to a DSN query string unless key is already present.
func ensureParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
		if strings.HasSuffix(dsn, "?") || strings.HasSuffix(dsn, "&") {
			sep = ""
		}
	}
	return dsn + sep + key + "=" + value
}

// Migrate applies the embedded migrations for driver.
func Migrate(db *sql.DB, driver string) error {
	dialect, err := DialectFor(driver)
	if err != nil {
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect.Goose); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	if err := goose.Up(db, dialect.migrationsDir()); err != nil {
		return fmt.Errorf("migrate (%s): %w", dialect.Goose, err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
