// Package scheduler is the dispatch loop of §4.3/§4.4: it drains the
// Priority Queue, leases a browser from the Browser Pool, and hands the
// pair to the Executor — mirroring the teacher's worker.runLoop ticker
// poll + panic-recovery dispatch, but pulling from an in-process heap
// instead of claiming rows over the database.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/browserjobs-backend/internal/browserpool"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/queue"
)

// Store is the subset of jobstore.JobStore the scheduler needs to turn
// a dequeued queue.Item back into a full executor.Request.
type Store interface {
	GetByRequestID(dbc dbctx.Context, requestID string) (*execjob.Job, error)
	MarkTerminal(dbc dbctx.Context, requestID string, status execjob.Status, fields map[string]interface{}) (bool, error)
}

type Scheduler struct {
	log      *logger.Logger
	q        *queue.Queue
	pool     *browserpool.Pool
	store    Store
	exec     *executor.Executor
	pollEvery time.Duration

	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

func New(log *logger.Logger, q *queue.Queue, pool *browserpool.Pool, store Store, exec *executor.Executor) *Scheduler {
	return &Scheduler{
		log:       log.With("component", "Scheduler"),
		q:         q,
		pool:      pool,
		store:     store,
		exec:      exec,
		pollEvery: 200 * time.Millisecond,
	}
}

// Start launches exactly `workers` dispatch loops. Each loop dequeues,
// leases a browser, and runs the job to completion before dequeueing
// again — concurrency is bounded by the worker count, not by
// browser-pool size, per §4.3: "No worker may dequeue a second job
// before releasing its browser lease and writing the terminal state."
func (s *Scheduler) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	s.log.Info("Starting scheduler dispatch loops", "workers", workers)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.runLoop(ctx, i+1)
	}
}

// Stop blocks until in-flight jobs finish or the grace period elapses,
// then returns. The caller is expected to have already stopped feeding
// the queue (closed the HTTP listener) before calling this.
func (s *Scheduler) Stop(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("Scheduler drained cleanly")
	case <-time.After(grace):
		s.log.Warn("Scheduler grace period elapsed with jobs still running")
	}
}

func (s *Scheduler) runLoop(ctx context.Context, workerID int) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Dispatch loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			item, ok := s.q.Dequeue()
			if !ok {
				continue
			}
			s.dispatch(ctx, workerID, item)
		}
	}
}

// dispatch runs one job to completion before returning. It is called
// synchronously from runLoop so a worker never dequeues a second job
// while this one is still RUNNING (§4.3), and inflight tracks exactly
// one job per worker at a time for Stop's drain wait.
func (s *Scheduler) dispatch(ctx context.Context, workerID int, item *queue.Item) {
	dbc := dbctx.New(ctx, nil)
	job, err := s.store.GetByRequestID(dbc, item.RequestID)
	if err != nil {
		s.log.Error("dequeued job not found in store", "worker_id", workerID, "request_id", item.RequestID, "error", err)
		return
	}

	browser, err := s.pool.Acquire(ctx)
	if err != nil {
		s.log.Error("acquire browser failed, re-queuing", "worker_id", workerID, "request_id", item.RequestID, "error", err)
		if reErr := s.q.Enqueue(item.RequestID, item.Priority, item.CreatedAt); reErr != nil {
			s.failNoBrowser(dbc, item.RequestID)
		}
		return
	}

	s.inflight.Add(1)
	defer s.inflight.Done()
	defer func() {
		// Every Acquire is paired with exactly one Release, including
		// when the Executor panics on a genuine bug — the job itself
		// is still marked FAILED by the recover branch below.
		s.pool.Release(browser)
		if r := recover(); r != nil {
			s.log.Error("executor panic", "worker_id", workerID, "request_id", item.RequestID, "panic", r)
			_, _ = s.store.MarkTerminal(dbctx.New(context.Background(), nil), item.RequestID, execjob.StatusFailed, map[string]interface{}{
				"error_message": "internal error during execution",
			})
		}
	}()

	tags := decodeTags(job.Tags)
	req := executor.Request{
		RequestID:      job.RequestID,
		APIKeyID:       job.APIKeyID,
		Script:         job.Script,
		ScriptHash:     job.ScriptHash,
		TimeoutSeconds: job.TimeoutSeconds,
		WebhookURL:     job.WebhookURL,
		UserAgent:      job.UserAgent,
		Tags:           tags,
		EnqueuedAt:     item.CreatedAt,
	}
	s.exec.Run(ctx, req, browser)
}

func (s *Scheduler) failNoBrowser(dbc dbctx.Context, requestID string) {
	_, err := s.store.MarkTerminal(dbc, requestID, execjob.StatusFailed, map[string]interface{}{
		"error_message": "no browser available and queue re-enqueue failed",
	})
	if err != nil {
		s.log.Error("failed to mark job failed after browser unavailable", "request_id", requestID, "error", err)
	}
}

func decodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}
