package store

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the store. driver is either "postgres" (dsn is a postgres
// URL) or "sqlite" (dsn is a file path or a full modernc DSN).
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres, "":
		if dsn == "" {
			return nil, fmt.Errorf("open store: postgres dsn not configured")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("open store: sqlite path not configured")
		}
		sqldb, err := sql.Open("sqlite", SQLiteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("open store: unknown driver %q", driver)
	}
}

// SQLiteDSN turns a file path into a DSN with WAL, a busy timeout, foreign keys
// and immediate write transactions. DSNs that already carry a query are kept.
func SQLiteDSN(path string) string {
	if u, err := url.Parse(path); err == nil && u.RawQuery != "" {
		return path
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}
