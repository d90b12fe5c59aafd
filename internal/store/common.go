package store

import (
	"context"
	"database/sql"

	"github.com/christoofar/FogLAMP/internal/models"
	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// TableStore runs the generic table operations of the storage layer: query,
// insert, update and delete driven by JSON payloads.
type TableStore struct {
	db         *sql.DB
	sink       *errorSink
	translator *Translator
}

func NewTableStore(db *sql.DB, sink *errorSink) *TableStore {
	return &TableStore{
		db:         db,
		sink:       sink,
		translator: newTranslator(sink),
	}
}

// Retrieve runs a retrieve descriptor against table and maps the rows into
// the canonical result document.
func (s *TableStore) Retrieve(ctx context.Context, table string, payload []byte) (*models.ResultSet, error) {
	query, err := s.translator.Retrieve(table, payload)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.sink.raise("retrieve", "%v", err)
		return nil, srvErrors.NewBackendError("retrieve", err)
	}
	defer rows.Close()
	return mapResultSet("retrieve", rows, s.sink)
}

// Insert adds one row built from the payload's column/value members.
func (s *TableStore) Insert(ctx context.Context, table string, payload []byte) error {
	query, err := s.translator.Insert(table, payload)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		s.sink.raise("insert", "%v", err)
		return srvErrors.NewBackendError("insert", err)
	}
	return nil
}

// Update applies the payload's update entries inside a single transaction
// and returns the total number of affected rows.
func (s *TableStore) Update(ctx context.Context, table string, payload []byte) (int64, error) {
	statements, err := s.translator.Update(table, payload)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.sink.raise("update", "%v", err)
		return 0, srvErrors.NewBackendError("update", err)
	}
	defer tx.Rollback()

	var affected int64
	for _, stmt := range statements {
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			s.sink.raise("update", "%v", err)
			return 0, srvErrors.NewBackendError("update", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	if err := tx.Commit(); err != nil {
		s.sink.raise("update", "%v", err)
		return 0, srvErrors.NewBackendError("update", err)
	}
	return affected, nil
}

// Delete removes the rows matched by the payload's where clause, or every
// row when the payload is empty. Returns the number of deleted rows.
func (s *TableStore) Delete(ctx context.Context, table string, payload []byte) (int64, error) {
	query, err := s.translator.Delete(table, payload)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		s.sink.raise("delete", "%v", err)
		return 0, srvErrors.NewBackendError("delete", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}
