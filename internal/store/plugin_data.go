package store

import (
	"context"
	"database/sql"
	"errors"

	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// PluginDataStore persists opaque per-filter state blobs, keyed by
// service name plus filter name.
type PluginDataStore struct {
	db *sql.DB
}

func NewPluginDataStore(db *sql.DB) *PluginDataStore {
	return &PluginDataStore{db: db}
}

// Load returns the stored blob for key, or ResourceNotFoundError when the
// filter never persisted anything.
func (s *PluginDataStore) Load(ctx context.Context, key string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, queryGetPluginData, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", srvErrors.NewResourceNotFoundError("plugin data", key)
	}
	if err != nil {
		return "", err
	}
	return data, nil
}

// Save stores or replaces the blob for key.
func (s *PluginDataStore) Save(ctx context.Context, key, data string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertPluginData, key, data)
	return err
}
