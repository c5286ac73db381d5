// Package jobstore is the durable record of every submitted job and its
// lifecycle (§2 component 1). It is grounded on the teacher's
// internal/data/repos/jobs.JobRunRepo: the same "dbctx.Context carries
// either the root *gorm.DB or an open transaction" calling convention,
// the same UpdateFieldsUnlessStatus idiom for guarding terminal-state
// immutability, generalized from gorm+postgres to gorm+sqlite.
package jobstore

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

var ErrNotFound = errors.New("jobstore: not found")

type JobStore interface {
	// Insert is the Job Store half of Priority Queue enqueue's two-step
	// commit point (§4.2): write the QUEUED row before the in-memory
	// queue append.
	Insert(dbc dbctx.Context, job *execjob.Job) error

	GetByRequestID(dbc dbctx.Context, requestID string) (*execjob.Job, error)

	// ListQueuedForRecovery services the startup-recovery requirement of
	// §4.2: when insert+enqueue aren't one transaction, sweep QUEUED rows
	// back into the queue in (priority desc, created_at asc) order.
	ListQueuedForRecovery(dbc dbctx.Context) ([]*execjob.Job, error)

	MarkRunning(dbc dbctx.Context, requestID string, queueWaitSeconds float64) error

	// MarkTerminal writes one of COMPLETED/FAILED/TIMED_OUT with its
	// execution record fields (§3). It is guarded against being applied
	// twice: terminal rows are immutable except for webhook_status.
	MarkTerminal(dbc dbctx.Context, requestID string, status execjob.Status, fields map[string]interface{}) (bool, error)

	SetWebhookStatus(dbc dbctx.Context, requestID string, status execjob.WebhookStatus) error

	ClearVideoPath(dbc dbctx.Context, requestID string) error

	CountByStatus(dbc dbctx.Context, statuses ...execjob.Status) (int64, error)

	// ListQueuedSnapshot returns up to limit QUEUED rows in the queue's own
	// priority-then-FIFO order. /queue/status does not call it; that
	// handler lists the in-memory queue via queue.Snapshot.
	ListQueuedSnapshot(dbc dbctx.Context, limit int) ([]*execjob.Job, error)

	ListJobsOlderThan(dbc dbctx.Context, cutoff time.Time) ([]string, error)
	DeleteByRequestIDs(dbc dbctx.Context, requestIDs []string) error

	UpsertDailyStat(dbc dbctx.Context, day time.Time, delta DailyStatDelta) error
}

// DailyStatDelta accumulates one day's worth of the supplemented
// daily_stats rollup (original_source/app/database.py).
type DailyStatDelta struct {
	TotalJobs         int64
	Successes         int64
	Failures          int64
	TotalExecutionSec float64
	TotalQueueWaitSec float64
	UniqueAPIKeys     int64
	VideosCreated     int64
	VideosDeleted     int64
}

type store struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) JobStore {
	return &store{db: db, log: baseLog.With("repo", "JobStore")}
}

func conn(dbc dbctx.Context, fallback *gorm.DB) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return fallback.WithContext(dbc.Ctx)
}

func (s *store) Insert(dbc dbctx.Context, job *execjob.Job) error {
	return conn(dbc, s.db).Create(job).Error
}

func (s *store) GetByRequestID(dbc dbctx.Context, requestID string) (*execjob.Job, error) {
	var job execjob.Job
	err := conn(dbc, s.db).Where("request_id = ?", requestID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *store) ListQueuedForRecovery(dbc dbctx.Context) ([]*execjob.Job, error) {
	var out []*execjob.Job
	err := conn(dbc, s.db).
		Where("status = ?", execjob.StatusQueued).
		Order("priority DESC, created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *store) MarkRunning(dbc dbctx.Context, requestID string, queueWaitSeconds float64) error {
	res := conn(dbc, s.db).Model(&execjob.Job{}).
		Where("request_id = ? AND status = ?", requestID, execjob.StatusQueued).
		Updates(map[string]interface{}{
			"status":         execjob.StatusRunning,
			"queue_wait_time": queueWaitSeconds,
		})
	return res.Error
}

func (s *store) MarkTerminal(dbc dbctx.Context, requestID string, status execjob.Status, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = status
	fields["completed_at"] = time.Now()

	res := conn(dbc, s.db).Model(&execjob.Job{}).
		Where("request_id = ? AND status IN ?", requestID, []execjob.Status{execjob.StatusQueued, execjob.StatusRunning}).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *store) SetWebhookStatus(dbc dbctx.Context, requestID string, status execjob.WebhookStatus) error {
	return conn(dbc, s.db).Model(&execjob.Job{}).
		Where("request_id = ?", requestID).
		Update("webhook_status", status).Error
}

func (s *store) ClearVideoPath(dbc dbctx.Context, requestID string) error {
	return conn(dbc, s.db).Model(&execjob.Job{}).
		Where("request_id = ?", requestID).
		Update("video_path", nil).Error
}

func (s *store) CountByStatus(dbc dbctx.Context, statuses ...execjob.Status) (int64, error) {
	var count int64
	err := conn(dbc, s.db).Model(&execjob.Job{}).Where("status IN ?", statuses).Count(&count).Error
	return count, err
}

func (s *store) ListQueuedSnapshot(dbc dbctx.Context, limit int) ([]*execjob.Job, error) {
	var out []*execjob.Job
	err := conn(dbc, s.db).
		Where("status = ?", execjob.StatusQueued).
		Order("priority DESC, created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *store) ListJobsOlderThan(dbc dbctx.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := conn(dbc, s.db).Model(&execjob.Job{}).
		Where("created_at < ?", cutoff).
		Pluck("request_id", &ids).Error
	return ids, err
}

func (s *store) DeleteByRequestIDs(dbc dbctx.Context, requestIDs []string) error {
	if len(requestIDs) == 0 {
		return nil
	}
	return conn(dbc, s.db).Where("request_id IN ?", requestIDs).Delete(&execjob.Job{}).Error
}

func (s *store) UpsertDailyStat(dbc dbctx.Context, day time.Time, delta DailyStatDelta) error {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var existing execjob.DailyStat
	err := conn(dbc, s.db).Where("day = ?", day).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		existing = execjob.DailyStat{Day: day}
	} else if err != nil {
		return err
	}
	existing.TotalJobs += delta.TotalJobs
	existing.Successes += delta.Successes
	existing.Failures += delta.Failures
	existing.TotalExecutionSec += delta.TotalExecutionSec
	existing.TotalQueueWaitSec += delta.TotalQueueWaitSec
	existing.UniqueAPIKeys += delta.UniqueAPIKeys
	existing.VideosCreated += delta.VideosCreated
	existing.VideosDeleted += delta.VideosDeleted
	return conn(dbc, s.db).Save(&existing).Error
}
