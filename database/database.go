package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported store drivers
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// DollarParams reports whether the driver expects $n placeholders
func DollarParams(driver string) bool {
	return driver == DriverPostgres || driver == DriverPgx
}

// InitDatabase opens and pings the database for the given driver
func InitDatabase(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, eris.New("database URL is required")
	}
	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, eris.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}

	if driver == DriverSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
			}
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to ping database")
	}

	zap.L().Info("connected to database", zap.String("driver", driver))
	return db, nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables(ctx context.Context, db *sql.DB, driver string) error {
	idColumn := "SERIAL PRIMARY KEY"
	if driver == DriverSQLite {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS price_records (
			id ` + idColumn + `,
			retailer TEXT NOT NULL,
			product TEXT NOT NULL,
			raw_product TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL,
			UNIQUE (retailer, product)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id ` + idColumn + `,
			record_id INTEGER NOT NULL REFERENCES price_records(id),
			price BIGINT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_records_product ON price_records (product)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_record ON price_history (record_id, recorded_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return eris.Wrap(err, "failed to create table")
		}
	}

	return nil
}
