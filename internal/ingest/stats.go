package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
)

const (
	statsKeyReadings  = "READINGS"
	statsKeyDiscarded = "DISCARDED"
)

// statsKey is the statistics-table key for an asset's ingest counter.
func statsKey(asset string) string {
	return "INGEST_" + strings.ToUpper(asset)
}

// statsAggregator coalesces per-asset ingest counts and the discarded total
// into batched statistics-table updates. The drain path merges counts and
// signals; the aggregator goroutine flushes. A failed flush keeps the
// pending state for the next signal.
type statsAggregator struct {
	storage StorageClient
	log     *zap.SugaredLogger

	signal chan struct{}

	// mu guards everything below. It is held across the flush so a
	// concurrent merge cannot interleave with a partially applied update.
	mu        sync.Mutex
	pending   map[string]int64
	discarded int64
	dbEntries map[string]struct{}
}

func newStatsAggregator(storage StorageClient) *statsAggregator {
	return &statsAggregator{
		storage:   storage,
		log:       zap.S().Named("statistics"),
		signal:    make(chan struct{}, 1),
		pending:   make(map[string]int64),
		dbEntries: make(map[string]struct{}),
	}
}

// merge folds a drained batch's per-asset counts into the pending map.
func (a *statsAggregator) merge(counts map[string]int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for asset, n := range counts {
		a.pending[asset] += n
	}
}

// addDiscarded charges n readings to the DISCARDED counter.
func (a *statsAggregator) addDiscarded(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded += n
}

// wake nudges the aggregator goroutine without blocking the caller.
func (a *statsAggregator) wake() {
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// run services flush signals until stop is closed. The engine performs one
// final flush after joining this goroutine.
func (a *statsAggregator) run(stop <-chan struct{}) {
	for {
		select {
		case <-a.signal:
			a.flush(context.Background())
		case <-stop:
			return
		}
	}
}

// flush writes all pending increments as one batched update: one entry per
// asset, one for READINGS and, when non-zero, one for DISCARDED. Rows are
// created lazily and idempotently. On failure the pending state is
// retained and the next signal retries.
func (a *statsAggregator) flush(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 && a.discarded == 0 {
		return
	}

	ensure := func(key, description string) bool {
		if _, known := a.dbEntries[key]; known {
			return true
		}
		if err := a.ensureStatsRow(ctx, key, description); err != nil {
			a.log.Errorw("unable to create statistics row", "key", key, "error", err)
			return false
		}
		a.dbEntries[key] = struct{}{}
		return true
	}

	var readings int64
	payload := models.UpdatePayload{}
	for asset, count := range a.pending {
		if !ensure(statsKey(asset), "Readings received from asset "+asset) {
			return
		}
		if count == 0 {
			continue
		}
		payload.Updates = append(payload.Updates, models.UpdateEntry{
			Expressions: []models.UpdateExpression{{Column: "value", Operator: "+", Value: count}},
			Condition:   models.NewWhere("key", "=", statsKey(asset)),
		})
		readings += count
	}
	if readings > 0 {
		if !ensure(statsKeyReadings, "Readings received by the service") {
			return
		}
		payload.Updates = append(payload.Updates, models.UpdateEntry{
			Expressions: []models.UpdateExpression{{Column: "value", Operator: "+", Value: readings}},
			Condition:   models.NewWhere("key", "=", statsKeyReadings),
		})
	}
	if a.discarded > 0 {
		if !ensure(statsKeyDiscarded, "Readings discarded at ingest") {
			return
		}
		payload.Updates = append(payload.Updates, models.UpdateEntry{
			Expressions: []models.UpdateExpression{{Column: "value", Operator: "+", Value: a.discarded}},
			Condition:   models.NewWhere("key", "=", statsKeyDiscarded),
		})
	}
	if len(payload.Updates) == 0 {
		a.pending = make(map[string]int64)
		return
	}

	doc, err := json.Marshal(payload)
	if err != nil {
		a.log.Errorw("failed to serialize statistics update", "error", err)
		return
	}
	if _, err := a.storage.UpdateTable(ctx, "statistics", doc); err != nil {
		a.log.Infow("statistics table update failed, will retry on next signal", "error", err)
		return
	}
	a.discarded = 0
	a.pending = make(map[string]int64)
}

// ensureStatsRow creates the statistics row for key if it does not exist
// yet. The select-then-insert is idempotent.
func (a *statsAggregator) ensureStatsRow(ctx context.Context, key, description string) error {
	query, err := json.Marshal(map[string]any{
		"where": models.NewWhere("key", "=", key),
	})
	if err != nil {
		return err
	}
	result, err := a.storage.QueryTable(ctx, "statistics", query)
	if err != nil {
		return err
	}
	if result.Count() > 0 {
		return nil
	}

	row, err := json.Marshal(map[string]any{
		"key":            key,
		"description":    description,
		"value":          0,
		"previous_value": 0,
	})
	if err != nil {
		return err
	}
	if err := a.storage.InsertTable(ctx, "statistics", row); err != nil {
		return fmt.Errorf("insert of statistics row %q failed: %w", key, err)
	}
	return nil
}
