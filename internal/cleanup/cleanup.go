// Package cleanup is the Retention & Cleanup Scheduler of §2 component 9
// / §4.7: a daily-at-configured-hour sweep that reclaims stale video
// artifacts, prunes old Job rows, and compacts the Job Store. Daily
// triggering is grounded on other_examples' nickheyer-Crepes, which
// schedules its own scraper sweeps with go-co-op/gocron; this service
// imports the same library for the "once a day at HH:00 local time"
// need instead of hand-rolling a ticker-plus-date-math loop.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/videostore"
)

// Compactor runs the SQL-store compaction step (§4.7 pt.4); implemented
// by internal/data/db.SQLiteService.
type Compactor interface {
	Compact() error
}

type Config struct {
	VideoRetentionDays int
	CleanupHour        int // 0-23, local time
}

// Scheduler owns the daily run. It is constructed once at startup and
// Start()ed alongside the rest of the pipeline's background machinery.
type Scheduler struct {
	log     *logger.Logger
	videos  *videostore.Store
	store   jobstore.JobStore
	compact Compactor
	cfg     Config

	gocron *gocron.Scheduler
}

func New(log *logger.Logger, videos *videostore.Store, store jobstore.JobStore, compact Compactor, cfg Config) *Scheduler {
	if cfg.VideoRetentionDays <= 0 {
		cfg.VideoRetentionDays = 30
	}
	return &Scheduler{
		log:     log.With("component", "CleanupScheduler"),
		videos:  videos,
		store:   store,
		compact: compact,
		cfg:     cfg,
		gocron:  gocron.NewScheduler(time.Local),
	}
}

// Start registers the daily job and begins the gocron scheduler's
// background ticking. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	at := fmt.Sprintf("%02d:00", s.cfg.CleanupHour)
	_, err := s.gocron.Every(1).Day().At(at).Do(func() {
		s.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup job: %w", err)
	}
	s.gocron.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.gocron.Stop()
}

// Run executes one retention + compaction pass (§4.7 pts.1-4). Errors
// are logged and never halt the run — cleanup is never on the hot path
// and a partial run is strictly better than none, per §4.7's rationale.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("cleanup run starting", "video_retention_days", s.cfg.VideoRetentionDays)

	videoCutoff := time.Now().Add(-time.Duration(s.cfg.VideoRetentionDays) * 24 * time.Hour)
	sweep, err := s.videos.RemoveOlderThan(videoCutoff)
	if err != nil {
		s.log.Error("video retention sweep failed", "error", err)
	}
	videosDeleted := 0
	if sweep != nil {
		videosDeleted = len(sweep.DeletedPaths)
		for _, path := range sweep.DeletedPaths {
			requestID := videostore.RequestIDFromPath(path)
			if clearErr := s.store.ClearVideoPath(dbctx.New(ctx, nil), requestID); clearErr != nil {
				s.log.Error("clear video_path failed", "request_id", requestID, "error", clearErr)
			}
		}
		if len(sweep.FailedToRemove) > 0 {
			s.log.Warn("some stale recordings could not be removed", "count", len(sweep.FailedToRemove))
		}
	}

	jobRetentionDays := s.cfg.VideoRetentionDays * 2
	if jobRetentionDays < 30 {
		jobRetentionDays = 30
	}
	jobCutoff := time.Now().Add(-time.Duration(jobRetentionDays) * 24 * time.Hour)
	staleIDs, err := s.store.ListJobsOlderThan(dbctx.New(ctx, nil), jobCutoff)
	if err != nil {
		s.log.Error("list stale jobs failed", "error", err)
	} else if len(staleIDs) > 0 {
		if delErr := s.store.DeleteByRequestIDs(dbctx.New(ctx, nil), staleIDs); delErr != nil {
			s.log.Error("delete stale jobs failed", "count", len(staleIDs), "error", delErr)
		} else {
			s.log.Info("deleted stale job rows", "count", len(staleIDs))
		}
	}

	prunedDirs, err := s.videos.PruneEmptyDirs()
	if err != nil {
		s.log.Error("prune empty video dirs failed", "error", err)
	}

	if s.compact != nil {
		if err := s.compact.Compact(); err != nil {
			s.log.Error("job store compaction failed", "error", err)
		}
	}

	delta := jobstore.DailyStatDelta{VideosDeleted: int64(videosDeleted)}
	if err := s.store.UpsertDailyStat(dbctx.New(ctx, nil), time.Now(), delta); err != nil {
		s.log.Error("daily stat upsert failed", "error", err)
	}

	s.log.Info("cleanup run complete", "videos_deleted", videosDeleted, "empty_dirs_pruned", prunedDirs)
}
