package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/videostore"
)

type fakeStore struct {
	clearedVideoPaths []string
	deletedIDs        []string
	dailyDeltas       []jobstore.DailyStatDelta
	jobstore.JobStore
}

func (f *fakeStore) ClearVideoPath(dbc dbctx.Context, requestID string) error {
	f.clearedVideoPaths = append(f.clearedVideoPaths, requestID)
	return nil
}

func (f *fakeStore) ListJobsOlderThan(dbc dbctx.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) DeleteByRequestIDs(dbc dbctx.Context, requestIDs []string) error {
	f.deletedIDs = append(f.deletedIDs, requestIDs...)
	return nil
}

func (f *fakeStore) UpsertDailyStat(dbc dbctx.Context, day time.Time, delta jobstore.DailyStatDelta) error {
	f.dailyDeltas = append(f.dailyDeltas, delta)
	return nil
}

type fakeCompactor struct{ called bool }

func (c *fakeCompactor) Compact() error {
	c.called = true
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}

func TestRunClearsVideoPathsAndCompacts(t *testing.T) {
	root := t.TempDir()
	videos := videostore.New(testLogger(t), root)

	dir := filepath.Join(root, "2020", "01", "01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(dir, "req-old.webm")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	old := time.Now().Add(-60 * 24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	store := &fakeStore{}
	compactor := &fakeCompactor{}
	sched := New(testLogger(t), videos, store, compactor, Config{VideoRetentionDays: 7, CleanupHour: 2})

	sched.Run(context.Background())

	if len(store.clearedVideoPaths) != 1 || store.clearedVideoPaths[0] != "req-old" {
		t.Fatalf("expected video_path cleared for req-old, got %v", store.clearedVideoPaths)
	}
	if !compactor.called {
		t.Fatalf("expected Compact to be called")
	}
	if len(store.dailyDeltas) != 1 || store.dailyDeltas[0].VideosDeleted != 1 {
		t.Fatalf("expected daily stat delta with 1 video deleted, got %+v", store.dailyDeltas)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale recording to be removed from disk")
	}
}
