package store

// Readings queries. The age filter compares user_ts against the wall clock
// shifted back by the purge age in seconds.
const (
	queryCountAgedUnsent = `
		SELECT count(*) FROM readings
		WHERE user_ts < now() - to_seconds(CAST(? AS BIGINT)) AND id < ?`

	queryDeleteAged = `
		DELETE FROM readings
		WHERE user_ts < now() - to_seconds(CAST(? AS BIGINT))`

	queryDeleteAgedSent = queryDeleteAged + ` AND id < ?`

	queryCountUnsentRetained = `SELECT count(*) FROM readings WHERE id > ?`

	queryCountReadings = `SELECT count(*) FROM readings`
)

// Plugin data queries.
const (
	queryGetPluginData = `SELECT data FROM plugin_data WHERE key = ?`

	queryUpsertPluginData = `
		INSERT INTO plugin_data (key, data)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`
)
