package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
	"github.com/christoofar/FogLAMP/internal/store"
	"github.com/christoofar/FogLAMP/pkg/scheduler"
)

// SentWatermarkFunc supplies the highest reading id acknowledged by the
// northbound pipelines. Purge protects rows above it when unsent retention
// is enabled.
type SentWatermarkFunc func(ctx context.Context) (uint64, error)

// Purge periodically deletes aged readings. It runs on the shared scheduler
// so long-running deletes never block the ingest path.
type Purge struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	log       *zap.SugaredLogger

	age       uint64
	flags     uint32
	interval  time.Duration
	watermark SentWatermarkFunc

	mu         sync.Mutex
	lastReport *models.PurgeReport
}

func NewPurgeService(st *store.Store, s *scheduler.Scheduler, age uint64, flags uint32, interval time.Duration, watermark SentWatermarkFunc) *Purge {
	return &Purge{
		store:     st,
		scheduler: s,
		log:       zap.S().Named("purge"),
		age:       age,
		flags:     flags,
		interval:  interval,
		watermark: watermark,
	}
}

// Start schedules the periodic purge. It returns immediately; the scheduler
// owns the goroutine.
func (p *Purge) Start() {
	p.scheduler.Every(p.interval, func(ctx context.Context) (any, error) {
		return p.Run(ctx)
	}, func(result scheduler.Result[any]) {
		if result.Err != nil {
			p.log.Errorw("purge cycle failed", "error", result.Err)
		}
	})
}

// Run performs one purge cycle and records its report.
func (p *Purge) Run(ctx context.Context) (*models.PurgeReport, error) {
	var sent uint64
	if p.flags != 0 && p.watermark != nil {
		var err error
		sent, err = p.watermark(ctx)
		if err != nil {
			p.log.Warnw("failed to resolve sent watermark, purging without it", "error", err)
			sent = 0
		}
	}

	report, err := p.store.Readings().Purge(ctx, p.age, p.flags, sent)
	if err != nil {
		return nil, err
	}
	p.log.Infow("purge complete",
		"removed", report.Removed,
		"unsentPurged", report.UnsentPurged,
		"unsentRetained", report.UnsentRetained,
		"readings", report.Readings)

	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()
	return report, nil
}

// LastReport returns the report of the most recent purge cycle, or nil when
// none has completed yet.
func (p *Purge) LastReport() *models.PurgeReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReport
}
