package store

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store provides access to all storage repositories.
type Store struct {
	db         *sql.DB
	sink       *errorSink
	readings   *ReadingsStore
	tables     *TableStore
	pluginData *PluginDataStore
}

func NewStore(db *sql.DB) *Store {
	sink := newErrorSink()
	return &Store{
		db:         db,
		sink:       sink,
		readings:   NewReadingsStore(db, sink),
		tables:     NewTableStore(db, sink),
		pluginData: NewPluginDataStore(db),
	}
}

func (s *Store) Readings() *ReadingsStore {
	return s.readings
}

func (s *Store) Tables() *TableStore {
	return s.tables
}

func (s *Store) PluginData() *PluginDataStore {
	return s.pluginData
}

// LastError returns the most recent error recorded for the named operation,
// or the empty string when the operation has not failed.
func (s *Store) LastError(operation string) string {
	return s.sink.last(operation)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// errorSink records the latest failure per operation name, the out-of-band
// error surface shared by the translator, mapper and table operations.
type errorSink struct {
	mu     sync.Mutex
	errors map[string]string
	log    *zap.SugaredLogger
}

func newErrorSink() *errorSink {
	return &errorSink{
		errors: make(map[string]string),
		log:    zap.S().Named("storage"),
	}
}

func (e *errorSink) raise(operation, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.log.Errorw("storage operation failed", "operation", operation, "error", msg)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors[operation] = msg
}

func (e *errorSink) last(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors[operation]
}
