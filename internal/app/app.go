// Package app wires every component into one constructor-injected App,
// matching the teacher's no-global-singletons New/Start/Run/Close
// lifecycle (internal/app/app.go upstream), generalized from a
// Postgres+SSE course-generation pipeline to this service's
// queue/browser-pool/executor pipeline.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/browserpool"
	"github.com/yungbote/browserjobs-backend/internal/cleanup"
	"github.com/yungbote/browserjobs-backend/internal/data/db"
	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/health"
	"github.com/yungbote/browserjobs-backend/internal/observability"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/queue"
	"github.com/yungbote/browserjobs-backend/internal/scheduler"
	"github.com/yungbote/browserjobs-backend/internal/videostore"
	"github.com/yungbote/browserjobs-backend/internal/webhook"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	Router *gin.Engine

	store      jobstore.JobStore
	sqliteSvc  *db.SQLiteService
	q          *queue.Queue
	pool       *browserpool.Pool
	breaker    *executor.Breaker
	exec       *executor.Executor
	videos     *videostore.Store
	dispatcher *webhook.Dispatcher
	sched      *scheduler.Scheduler
	cleanupSvc *cleanup.Scheduler
	metrics    *observability.Metrics

	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	sqliteSvc, err := db.NewSQLiteService(log, cfg.DatabasePath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	if err := db.Migrate(sqliteSvc.DB()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store := jobstore.New(sqliteSvc.DB(), log)
	q := queue.New(cfg.MaxQueueSize)
	pool := browserpool.New(log, cfg.BrowserPoolSize, cfg.BrowserAcquireTimeout, cfg.BrowserWarmupPages)
	breaker := executor.NewBreaker()
	videos := videostore.New(log, cfg.VideoRoot)
	metrics := observability.New()

	dispatcher := webhook.New(log, store, metrics, webhook.Config{
		MaxRetries: cfg.MaxWebhookRetries,
		Timeout:    cfg.WebhookTimeout,
	})

	exec := executor.New(log, store, videos, dispatcher, breaker, metrics, executor.Config{
		MaxExecutionTime:           cfg.MaxExecutionTime,
		EmergencyTimeoutMultiplier: cfg.EmergencyTimeoutMultiplier,
		VideoWidth:                 cfg.VideoWidth,
		VideoHeight:                cfg.VideoHeight,
		FFmpegPath:                 cfg.FFmpegPath,
	})

	sched := scheduler.New(log, q, pool, store, exec)
	cleanupSvc := cleanup.New(log, videos, store, sqliteSvc, cleanup.Config{
		VideoRetentionDays: cfg.VideoRetentionDays,
		CleanupHour:        cfg.VideoCleanupHour,
	})
	healthAgg := health.New(log, sqliteSvc.DB(), q, pool, store)

	handlerset := wireHandlers(log, cfg, store, q, pool, breaker, videos, healthAgg, cleanupSvc)
	middleware := wireMiddleware(log)
	router := wireRouter(handlerset, middleware, metrics, log, cfg.CORSAllowedOrigins)

	return &App{
		Log:        log,
		Cfg:        cfg,
		Router:     router,
		store:      store,
		sqliteSvc:  sqliteSvc,
		q:          q,
		pool:       pool,
		breaker:    breaker,
		exec:       exec,
		videos:     videos,
		dispatcher: dispatcher,
		sched:      sched,
		cleanupSvc: cleanupSvc,
		metrics:    metrics,
	}, nil
}

// Start brings up every piece of background machinery: the warm browser
// pool, the scheduler's dispatch loops, the webhook dispatcher's owning
// goroutine, the daily cleanup scheduler, and the startup-recovery sweep
// of §4.2 (QUEUED rows left behind by a previous process get re-enqueued
// before new traffic is accepted).
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.pool.Start(ctx); err != nil {
		a.Log.Error("browser pool start failed", "error", err)
	}

	a.recoverQueuedJobs(ctx)

	a.sched.Start(ctx, a.Cfg.MaxConcurrentExecutions)
	a.dispatcher.Start(ctx)

	if err := a.cleanupSvc.Start(ctx); err != nil {
		a.Log.Error("cleanup scheduler start failed", "error", err)
	}

	go a.runGaugeLoop(ctx)
}

// runGaugeLoop periodically samples the queue depth, browser-pool
// availability, and RUNNING job count into the §8 gauges. These three
// values are cheap point-in-time reads (matching what the Health
// Aggregator itself reports), so a coarse poll interval is sufficient —
// nothing on the hot path depends on gauge freshness.
func (a *App) runGaugeLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.SetQueueDepth(a.q.Len())
			a.metrics.SetBrowserPoolAvailable(a.pool.Available())
			dbc := dbctx.New(ctx, nil)
			running, err := a.store.CountByStatus(dbc, execjob.StatusRunning)
			if err == nil {
				a.metrics.SetRunningJobs(int(running))
			}
		}
	}
}

func (a *App) recoverQueuedJobs(ctx context.Context) {
	dbc := dbctx.New(ctx, nil)
	jobs, err := a.store.ListQueuedForRecovery(dbc)
	if err != nil {
		a.Log.Error("startup recovery sweep failed", "error", err)
		return
	}
	for _, job := range jobs {
		if err := a.q.Enqueue(job.RequestID, job.Priority, job.CreatedAt); err != nil {
			a.Log.Error("startup recovery enqueue failed", "request_id", job.RequestID, "error", err)
		}
	}
	if len(jobs) > 0 {
		a.Log.Info("startup recovery re-enqueued queued jobs", "count", len(jobs))
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

// Close first gives the scheduler a grace period to drain in-flight jobs,
// then stops the cleanup scheduler and the browser pool, and finally
// cancels the root context that the dispatch loops, the webhook
// dispatcher and the gauge loop run under.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.sched.Stop(30 * time.Second)
		a.cleanupSvc.Stop()
		a.pool.Close()
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
