// Package migrations bootstraps the storage schema: the readings buffer,
// the statistics counters and the filter plugin-data table.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create readings id sequence",
		sql:     `CREATE SEQUENCE IF NOT EXISTS readings_id_seq`,
	},
	{
		version: 2,
		name:    "create readings",
		sql: `
			CREATE TABLE IF NOT EXISTS readings (
				id BIGINT PRIMARY KEY DEFAULT nextval('readings_id_seq'),
				asset_code VARCHAR NOT NULL,
				read_key VARCHAR,
				reading JSON,
				user_ts TIMESTAMP,
				ts TIMESTAMP DEFAULT now()
			)`,
	},
	{
		version: 3,
		name:    "create statistics",
		sql: `
			CREATE TABLE IF NOT EXISTS statistics (
				key VARCHAR PRIMARY KEY,
				description VARCHAR,
				value BIGINT DEFAULT 0,
				previous_value BIGINT DEFAULT 0
			)`,
	},
	{
		version: 4,
		name:    "create plugin_data",
		sql: `
			CREATE TABLE IF NOT EXISTS plugin_data (
				key VARCHAR PRIMARY KEY,
				data VARCHAR
			)`,
	},
}

// Run applies all pending migrations in version order.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRowContext(ctx,
			`SELECT count(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}
