// Package database persists the visitor's starred plants behind a
// pluggable database/sql driver. The default is a local SQLite file,
// matching how a single-user field guide stores its state, but the
// same code runs against Genji, DuckDB, or a shared PostgreSQL when
// several kiosks need one favourites set.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"
)

// Database wraps the SQL connection together with the normalized
// driver name so statement builders can pick the right placeholder
// style without re-parsing configuration.
type Database struct {
	DB     *sql.DB
	Driver string
}

// Config holds the connection details for every supported driver.
type Config struct {
	DBType    string // "sqlite", "genji", "duckdb", or "pgx" (PostgreSQL)
	DBPath    string // file path for the file-based drivers
	DBHost    string // PostgreSQL host
	DBPort    int    // PostgreSQL port
	DBUser    string // PostgreSQL user
	DBPass    string // PostgreSQL password
	DBName    string // PostgreSQL database name
	PGSSLMode string // PostgreSQL SSL mode
	Port      int    // service port, used in default file names
}

// normalizeDBType trims and lowercases driver names so downstream
// switch blocks never miss a case because of incidental casing.
func normalizeDBType(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// NewDatabase opens the configured backend and applies per-driver
// connection limits. File-based engines are capped to one connection
// so concurrent favourite toggles serialize at the DB layer.
func NewDatabase(config Config) (*Database, error) {
	driverName := normalizeDBType(config.DBType)
	var dsn string

	switch driverName {
	case "sqlite", "genji":
		dsn = config.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("favourites-%d.%s", config.Port, driverName)
		}
	case "duckdb":
		// The file is created on first open.
		dsn = config.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("favourites-%d.duckdb", config.Port)
		}
	case "pgx":
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.DBUser, config.DBPass, config.DBHost, config.DBPort, config.DBName, config.PGSSLMode)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DBType)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening the database: %v", err)
	}

	switch driverName {
	case "sqlite", "genji", "duckdb":
		// One physical connection; no concurrent statements at DB layer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if driverName == "sqlite" {
			tuneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := tuneSQLiteConnection(tuneCtx, db, log.Printf); err != nil {
				log.Printf("sqlite tuning skipped: %v", err)
			}
			cancel()
		}
	}

	// Cheap liveness probe with timeout so startup never hangs.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error connecting to the database: %v", err)
		}
	}

	log.Printf("Using database driver: %s with DSN: %s", driverName, dsn)

	return &Database{DB: db, Driver: driverName}, nil
}

// InitSchema creates the favourites table. The column shapes are
// portable across all four drivers so a single statement suffices.
func (db *Database) InitSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS favourites (name TEXT PRIMARY KEY, ids TEXT)`
	if _, err := db.DB.Exec(schema); err != nil {
		return fmt.Errorf("init favourites schema: %w", err)
	}
	return nil
}

// tuneSQLiteConnection applies WAL/synchronous/busy pragmas so rapid
// favourite toggles do not trip over the default rollback journal.
func tuneSQLiteConnection(ctx context.Context, db *sql.DB, logf func(string, ...any)) error {
	type pragma struct {
		label     string
		query     string
		expectRow bool
	}

	steps := []pragma{
		{label: "journal_mode", query: "PRAGMA journal_mode=WAL;", expectRow: true},
		{label: "synchronous", query: "PRAGMA synchronous=NORMAL;"},
		{label: "busy_timeout", query: "PRAGMA busy_timeout=5000;"},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if step.expectRow {
			var mode string
			if err := db.QueryRowContext(ctx, step.query).Scan(&mode); err != nil {
				return fmt.Errorf("apply %s: %w", step.label, err)
			}
			logf("SQLite tuning %s -> %s", step.label, mode)
			continue
		}
		if _, err := db.ExecContext(ctx, step.query); err != nil {
			return fmt.Errorf("apply %s: %w", step.label, err)
		}
	}
	return nil
}
