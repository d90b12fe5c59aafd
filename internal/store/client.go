package store

import (
	"context"

	"github.com/christoofar/FogLAMP/internal/models"
)

// The methods below make *Store satisfy the storage client contract the
// ingest engine consumes.

// QueryTable runs a retrieve descriptor against a table.
func (s *Store) QueryTable(ctx context.Context, table string, payload []byte) (*models.ResultSet, error) {
	return s.tables.Retrieve(ctx, table, payload)
}

// InsertTable inserts one row built from the payload.
func (s *Store) InsertTable(ctx context.Context, table string, payload []byte) error {
	return s.tables.Insert(ctx, table, payload)
}

// UpdateTable applies the payload's update entries and returns the affected
// row count.
func (s *Store) UpdateTable(ctx context.Context, table string, payload []byte) (int64, error) {
	return s.tables.Update(ctx, table, payload)
}

// ReadingAppend appends a batch of readings; the batch commits atomically.
func (s *Store) ReadingAppend(ctx context.Context, readings []*models.Reading) error {
	return s.readings.Append(ctx, readings)
}

// PluginDataLoad returns persisted filter state for key.
func (s *Store) PluginDataLoad(ctx context.Context, key string) (string, error) {
	return s.pluginData.Load(ctx, key)
}

// PluginDataSave persists filter state under key.
func (s *Store) PluginDataSave(ctx context.Context, key, data string) error {
	return s.pluginData.Save(ctx, key, data)
}
