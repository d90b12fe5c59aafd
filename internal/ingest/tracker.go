package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
)

// AssetTracker caches the (service, plugin, asset, event) tuples known to
// the management plane so that each newly seen asset is registered exactly
// once per session.
type AssetTracker struct {
	service string
	plugin  string
	mgmt    ManagementClient
	log     *zap.SugaredLogger

	mu     sync.RWMutex
	tuples map[models.AssetTrackingTuple]struct{}
}

func NewAssetTracker(mgmt ManagementClient, service, plugin string) *AssetTracker {
	return &AssetTracker{
		service: service,
		plugin:  plugin,
		mgmt:    mgmt,
		log:     zap.S().Named("asset_tracker"),
		tuples:  make(map[models.AssetTrackingTuple]struct{}),
	}
}

// Populate primes the cache from the management plane. Tuples registered for
// a different plugin or event are dropped with an info log; they belong to
// other pipelines of the same service. A fetch failure leaves the cache
// empty, tuples will be re-registered on demand.
func (t *AssetTracker) Populate(ctx context.Context) {
	tuples, err := t.mgmt.GetAssetTrackingTuples(ctx, t.service)
	if err != nil {
		t.log.Errorw("failed to populate asset tracking cache", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tuple := range tuples {
		if tuple.Plugin != t.plugin || tuple.Event != models.TrackingEventIngest {
			t.log.Infow("plugin/event mismatch, not caching asset tracking tuple",
				"tuple", tuple.String())
			continue
		}
		t.tuples[tuple] = struct{}{}
	}
}

// Check reports whether the tuple is already cached.
func (t *AssetTracker) Check(tuple models.AssetTrackingTuple) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tuples[tuple]
	return ok
}

// Add registers the tuple with the management plane and caches it. A cache
// hit is a no-op; the cache is only updated when registration succeeds.
func (t *AssetTracker) Add(ctx context.Context, tuple models.AssetTrackingTuple) error {
	if t.Check(tuple) {
		return nil
	}
	if err := t.mgmt.AddAssetTrackingTuple(ctx, tuple.Service, tuple.Plugin, tuple.Asset, tuple.Event); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tuples[tuple] = struct{}{}
	return nil
}
