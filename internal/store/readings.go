package store

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/christoofar/FogLAMP/internal/models"
	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// ReadingsStore holds the readings-table operations: the batched append used
// by the ingest engine, the cursor fetch used by the sending pipelines and
// the age-and-watermark purge.
type ReadingsStore struct {
	db   *sql.DB
	sink *errorSink
}

func NewReadingsStore(db *sql.DB, sink *errorSink) *ReadingsStore {
	return &ReadingsStore{db: db, sink: sink}
}

// Append inserts the whole batch with one multi-row INSERT. Either every
// reading of the batch is stored or none is; there is no partial success.
// Values are bound as parameters except user_ts function expressions such as
// now(), which are inlined.
func (s *ReadingsStore) Append(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	builder := sq.Insert("readings").Columns("asset_code", "read_key", "reading", "user_ts")
	for _, r := range readings {
		doc, err := json.Marshal(r.Reading)
		if err != nil {
			s.sink.raise("appendReadings", "failed to serialize reading for asset %q: %v", r.AssetCode, err)
			return srvErrors.NewTranslationError("appendReadings", "failed to serialize reading: %v", err)
		}
		var userTS any = r.UserTS
		if functionCallPattern.MatchString(r.UserTS) {
			userTS = sq.Expr(r.UserTS)
		}
		builder = builder.Values(r.AssetCode, r.ReadKey, string(doc), userTS)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		s.sink.raise("appendReadings", "%v", err)
		return srvErrors.NewTranslationError("appendReadings", "failed to build SQL: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.sink.raise("appendReadings", "%v", err)
		return srvErrors.NewBackendError("appendReadings", err)
	}
	return nil
}

// AppendPayload appends the readings carried by an appendReadings wire
// document.
func (s *ReadingsStore) AppendPayload(ctx context.Context, payload []byte) (int, error) {
	var doc models.ReadingPayload
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.sink.raise("appendReadings", "failed to parse JSON payload: %v", err)
		return 0, srvErrors.NewTranslationError("appendReadings", "failed to parse JSON payload: %v", err)
	}
	if doc.Readings == nil {
		s.sink.raise("appendReadings", "payload is missing the readings array")
		return 0, srvErrors.NewTranslationError("appendReadings", "payload is missing the readings array")
	}
	if err := s.Append(ctx, doc.Readings); err != nil {
		return 0, err
	}
	return len(doc.Readings), nil
}

// Fetch returns a block of readings with id >= the cursor. The caller
// advances the cursor to the maximum returned id plus one. Rows committed
// concurrently below an already-passed cursor can be returned again after a
// restart; downstream delivery is at-least-once.
func (s *ReadingsStore) Fetch(ctx context.Context, id uint64, blksize uint64) (*models.ResultSet, error) {
	query, args, err := sq.Select("*").From("readings").
		Where(sq.GtOrEq{"id": id}).
		Limit(blksize).
		ToSql()
	if err != nil {
		return nil, srvErrors.NewTranslationError("fetchReadings", "failed to build SQL: %v", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.sink.raise("fetchReadings", "%v", err)
		return nil, srvErrors.NewBackendError("fetchReadings", err)
	}
	defer rows.Close()
	return mapResultSet("fetchReadings", rows, s.sink)
}

// Purge deletes readings older than age seconds. A non-zero flags value
// restricts the delete to already-sent rows (id < sent). The unsentPurged
// count is computed before the delete; the post-delete counts are
// best-effort and report zero on failure.
func (s *ReadingsStore) Purge(ctx context.Context, age uint64, flags uint32, sent uint64) (*models.PurgeReport, error) {
	report := &models.PurgeReport{}

	if flags != 0 {
		if err := s.db.QueryRowContext(ctx, queryCountAgedUnsent, age, sent).Scan(&report.UnsentPurged); err != nil {
			s.sink.raise("purgeReadings", "failed to count unsent purgeable rows: %v", err)
			report.UnsentPurged = 0
		}
	}

	var res sql.Result
	var err error
	if flags != 0 {
		res, err = s.db.ExecContext(ctx, queryDeleteAgedSent, age, sent)
	} else {
		res, err = s.db.ExecContext(ctx, queryDeleteAged, age)
	}
	if err != nil {
		s.sink.raise("purgeReadings", "%v", err)
		return nil, srvErrors.NewBackendError("purgeReadings", err)
	}
	report.Removed, _ = res.RowsAffected()

	if err := s.db.QueryRowContext(ctx, queryCountUnsentRetained, sent).Scan(&report.UnsentRetained); err != nil {
		s.sink.raise("purgeReadings", "failed to count retained rows: %v", err)
		report.UnsentRetained = 0
	}
	if err := s.db.QueryRowContext(ctx, queryCountReadings).Scan(&report.Readings); err != nil {
		s.sink.raise("purgeReadings", "failed to count remaining readings: %v", err)
		report.Readings = 0
	}
	return report, nil
}
