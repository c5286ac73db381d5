// Package health is the point-in-time status rollup of §2 component 10
// (a component the distilled spec.md table names but leaves otherwise
// unspecified, folded into SPEC_FULL.md as a health aggregator). It
// resolves spec §9's Open Question (a) — "warm browser" counting in
// health responses — using the exact heuristic committed to in
// original_source/app/health.py: warm_browsers = min(total_browsers,
// available_browsers + 2). That file is the one concrete number the
// original source commits to on this question, so it is kept rather
// than invented.
package health

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// QueueInspector is the read-only view the aggregator needs of the
// Priority Queue; internal/queue.Queue satisfies it without the
// aggregator importing queue's mutation surface.
type QueueInspector interface {
	Len() int
}

// PoolInspector is the read-only view of the Browser Pool.
type PoolInspector interface {
	Size() int
	Available() int
}

type Snapshot struct {
	Services    map[string]string `json:"services"`
	QueueDepth  int               `json:"queue_depth"`
	RunningJobs int64             `json:"running_jobs"`
	BrowserPool BrowserPoolStatus `json:"browser_pool"`
	Timestamp   time.Time         `json:"timestamp"`
}

type BrowserPoolStatus struct {
	Size         int `json:"size"`
	Available    int `json:"available"`
	WarmBrowsers int `json:"warm_browsers"`
}

// Aggregator reads from the queue, pool, and Job Store without owning
// or mutating any of them — a pure point-in-time snapshot, per §2's
// "Responsibility" column for this component.
type Aggregator struct {
	log   *logger.Logger
	db    *gorm.DB
	queue QueueInspector
	pool  PoolInspector
	store jobstore.JobStore
}

func New(log *logger.Logger, db *gorm.DB, queue QueueInspector, pool PoolInspector, store jobstore.JobStore) *Aggregator {
	return &Aggregator{
		log:   log.With("component", "HealthAggregator"),
		db:    db,
		queue: queue,
		pool:  pool,
		store: store,
	}
}

func (a *Aggregator) Snapshot(ctx context.Context) Snapshot {
	services := map[string]string{}

	if err := a.pingDB(ctx); err != nil {
		services["database"] = "error: " + err.Error()
	} else {
		services["database"] = "ok"
	}

	var running int64
	if a.store != nil {
		var err error
		running, err = a.store.CountByStatus(dbctx.New(ctx, nil), execjob.StatusRunning)
		if err != nil {
			services["job_store"] = "error: " + err.Error()
		} else {
			services["job_store"] = "ok"
		}
	}

	queueDepth := 0
	if a.queue != nil {
		queueDepth = a.queue.Len()
		services["queue"] = "ok"
	}

	pool := BrowserPoolStatus{}
	if a.pool != nil {
		pool.Size = a.pool.Size()
		pool.Available = a.pool.Available()
		pool.WarmBrowsers = warmBrowsers(pool.Size, pool.Available)
		services["browser_pool"] = "ok"
	}

	return Snapshot{
		Services:    services,
		QueueDepth:  queueDepth,
		RunningJobs: running,
		BrowserPool: pool,
		Timestamp:   time.Now(),
	}
}

func (a *Aggregator) pingDB(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func warmBrowsers(size, available int) int {
	warm := available + 2
	if warm > size {
		warm = size
	}
	return warm
}
