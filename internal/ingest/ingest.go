package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
)

// Config carries the queue tuning and the service identity.
type Config struct {
	// Timeout is the maximum latency between drains.
	Timeout time.Duration
	// Threshold is the queue size that triggers an eager drain.
	Threshold int
	// Requeue re-buffers a batch at the front of the queue when the
	// storage append fails, instead of discarding it.
	Requeue     bool
	ServiceName string
	PluginName  string
}

// Ingest buffers readings from the source plugin and drains them in batches
// through the filter pipeline into storage. Producers only contend on the
// queue mutex for the duration of an append or a buffer swap; storage waits
// happen on the drain goroutine.
type Ingest struct {
	storage StorageClient
	mgmt    ManagementClient
	cfg     Config
	log     *zap.SugaredLogger

	qMu    sync.Mutex
	queue  []*models.Reading
	signal chan struct{}

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	pipeline *Pipeline
	tracker  *AssetTracker
	stats    *statsAggregator

	// working holds the batch being drained; the pipeline sink restores
	// the filtered readings into it. Only the drain goroutine touches it.
	working []*models.Reading
}

func New(storage StorageClient, mgmt ManagementClient, cfg Config) *Ingest {
	i := &Ingest{
		storage: storage,
		mgmt:    mgmt,
		cfg:     cfg,
		log:     zap.S().Named("ingest"),
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	i.pipeline = NewPipeline(cfg.ServiceName, mgmt, storage)
	i.tracker = NewAssetTracker(mgmt, cfg.ServiceName, cfg.PluginName)
	i.stats = newStatsAggregator(storage)
	return i
}

// LoadFilters builds the filter pipeline from the named configuration
// category. Must be called before Start; a filter init failure is fatal.
func (i *Ingest) LoadFilters(ctx context.Context, categoryName string) error {
	if err := i.pipeline.Load(ctx, categoryName); err != nil {
		return err
	}
	if !i.pipeline.HasFilters() {
		return nil
	}
	return i.pipeline.Setup(ctx, i.useFilteredData)
}

// Start primes the asset-tracking cache and launches the drain and
// statistics goroutines.
func (i *Ingest) Start(ctx context.Context) {
	i.tracker.Populate(ctx)
	i.running.Store(true)

	i.wg.Add(2)
	go func() {
		defer i.wg.Done()
		i.drainLoop()
	}()
	go func() {
		defer i.wg.Done()
		i.stats.run(i.stop)
	}()
}

// Running reports whether shutdown has not started yet.
func (i *Ingest) Running() bool {
	return i.running.Load()
}

// IngestReading queues one reading. The drain condition is signalled when
// the queue reaches the threshold or shutdown is in progress.
func (i *Ingest) IngestReading(r *models.Reading) {
	i.qMu.Lock()
	i.queue = append(i.queue, r)
	notify := len(i.queue) >= i.cfg.Threshold || !i.running.Load()
	i.qMu.Unlock()
	if notify {
		i.notifyDrain()
	}
}

// IngestMany queues a batch of readings preserving their order.
func (i *Ingest) IngestMany(readings []*models.Reading) {
	i.qMu.Lock()
	i.queue = append(i.queue, readings...)
	notify := len(i.queue) >= i.cfg.Threshold || !i.running.Load()
	i.qMu.Unlock()
	if notify {
		i.notifyDrain()
	}
}

func (i *Ingest) notifyDrain() {
	select {
	case i.signal <- struct{}{}:
	default:
	}
}

// ConfigChange routes a configuration category change to the filter that
// owns the category.
func (i *Ingest) ConfigChange(category, newConfig string) {
	i.pipeline.ConfigChange(category, newConfig)
}

// Tracker exposes the asset-tracking cache.
func (i *Ingest) Tracker() *AssetTracker {
	return i.tracker
}

// QueueLen returns the current live-queue length.
func (i *Ingest) QueueLen() int {
	i.qMu.Lock()
	defer i.qMu.Unlock()
	return len(i.queue)
}

func (i *Ingest) drainLoop() {
	timer := time.NewTimer(i.cfg.Timeout)
	defer timer.Stop()
	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(i.cfg.Timeout)

		select {
		case <-i.signal:
		case <-timer.C:
		case <-i.stop:
			return
		}
		i.processQueue(context.Background())
	}
}

// processQueue swaps the live queue with a fresh one, runs the batch through
// the filter pipeline, discovers new assets, appends to storage and charges
// statistics. On an append failure the batch is either re-buffered at the
// front of the live queue (requeue mode) or counted as discarded.
func (i *Ingest) processQueue(ctx context.Context) {
	i.qMu.Lock()
	data := i.queue
	i.queue = make([]*models.Reading, 0, i.cfg.Threshold)
	i.qMu.Unlock()

	if len(data) == 0 {
		return
	}

	if i.pipeline.HasFilters() {
		i.working = nil
		i.pipeline.Ingest(models.NewReadingSet(data))
		data = i.working
		i.working = nil
		if len(data) == 0 {
			return
		}
	}

	counts := make(map[string]int64)
	for _, r := range data {
		tuple := models.NewAssetTrackingTuple(
			i.cfg.ServiceName, i.cfg.PluginName, r.AssetCode, models.TrackingEventIngest)
		if !i.tracker.Check(tuple) {
			if err := i.tracker.Add(ctx, tuple); err != nil {
				i.log.Errorw("failed to register asset tracking tuple",
					"tuple", tuple.String(), "error", err)
			} else {
				i.log.Infow("new asset seen during ingest", "tuple", tuple.String())
			}
		}
		counts[r.AssetCode]++
	}

	if err := i.storage.ReadingAppend(ctx, data); err != nil {
		if i.cfg.Requeue {
			i.log.Errorw("failed to write readings to storage, buffering",
				"readings", len(data), "error", err)
			i.qMu.Lock()
			i.queue = append(data, i.queue...)
			i.qMu.Unlock()
			return
		}
		i.log.Infow("discarding readings that could not be stored",
			"readings", len(data), "error", err)
		i.stats.addDiscarded(int64(len(data)))
	} else {
		i.stats.merge(counts)
	}
	i.stats.wake()
}

// useFilteredData is the pipeline terminus: it restores the filtered batch
// into the engine's working slice. The filters may have mutated, dropped or
// replaced the readings.
func (i *Ingest) useFilteredData(set *models.ReadingSet) {
	i.working = set.Readings()
	set.Clear()
}

// Shutdown drains and flushes everything, then releases the filters. After
// the background goroutines are joined, one final drain and one final
// statistics flush run on the caller so that nothing queued before or
// during shutdown is lost.
func (i *Ingest) Shutdown(ctx context.Context) {
	i.running.Store(false)
	close(i.stop)
	i.wg.Wait()

	i.processQueue(ctx)
	i.stats.flush(ctx)
	i.pipeline.Shutdown(ctx)
}
