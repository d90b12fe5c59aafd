package store

import (
	"database/sql"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
)

// defaultDSN is used when DB_CONNECTION is not set. The backend is an
// embedded DuckDB database file; ":memory:" is accepted for tests.
const defaultDSN = "foglamp.db"

// DSNFromEnv resolves the backend connection string from the DB_CONNECTION
// environment variable.
func DSNFromEnv() string {
	if dsn := os.Getenv("DB_CONNECTION"); dsn != "" {
		return dsn
	}
	return defaultDSN
}

// NewDB opens the DuckDB backend at the given DSN.
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
