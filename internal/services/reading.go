// Package services implements the business logic layer between the HTTP
// handlers and the storage layer.
package services

import (
	"context"

	"github.com/christoofar/FogLAMP/internal/models"
	"github.com/christoofar/FogLAMP/internal/store"
)

// ReadingService fronts the readings and generic table operations for the
// storage REST surface.
type ReadingService struct {
	store *store.Store
}

func NewReadingService(st *store.Store) *ReadingService {
	return &ReadingService{store: st}
}

// Append stores the readings carried by an appendReadings document and
// returns how many were written.
func (s *ReadingService) Append(ctx context.Context, payload []byte) (int, error) {
	return s.store.Readings().AppendPayload(ctx, payload)
}

// Fetch returns a block of readings starting at the id cursor.
func (s *ReadingService) Fetch(ctx context.Context, id, blksize uint64) (*models.ResultSet, error) {
	return s.store.Readings().Fetch(ctx, id, blksize)
}

// Purge removes readings older than age seconds, honouring the sent
// watermark when flags is non-zero.
func (s *ReadingService) Purge(ctx context.Context, age uint64, flags uint32, sent uint64) (*models.PurgeReport, error) {
	return s.store.Readings().Purge(ctx, age, flags, sent)
}

// Query runs a retrieve descriptor against a table.
func (s *ReadingService) Query(ctx context.Context, table string, payload []byte) (*models.ResultSet, error) {
	return s.store.Tables().Retrieve(ctx, table, payload)
}

// Insert adds one row to a table.
func (s *ReadingService) Insert(ctx context.Context, table string, payload []byte) error {
	return s.store.Tables().Insert(ctx, table, payload)
}

// Update applies an update payload to a table, returning affected rows.
func (s *ReadingService) Update(ctx context.Context, table string, payload []byte) (int64, error) {
	return s.store.Tables().Update(ctx, table, payload)
}

// Delete removes the rows matched by the payload.
func (s *ReadingService) Delete(ctx context.Context, table string, payload []byte) (int64, error) {
	return s.store.Tables().Delete(ctx, table, payload)
}
