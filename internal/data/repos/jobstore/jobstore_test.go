package jobstore

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/browserjobs-backend/internal/data/db"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}

func TestJobStoreLifecycle(t *testing.T) {
	conn := testDB(t)
	store := New(conn, testLogger(t))
	ctx := context.Background()
	dbc := dbctx.New(ctx, nil)

	job := &execjob.Job{
		RequestID:      "req-1",
		APIKeyID:       1,
		Script:         `[{"op":"return","args":{"value":1}}]`,
		ScriptHash:     "hash-1",
		ScriptSize:     10,
		Priority:       3,
		TimeoutSeconds: 30,
		Status:         execjob.StatusQueued,
		CreatedAt:      time.Now(),
	}
	if err := store.Insert(dbc, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.GetByRequestID(dbc, "req-1")
	if err != nil {
		t.Fatalf("GetByRequestID: %v", err)
	}
	if got.Status != execjob.StatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}

	if err := store.MarkRunning(dbc, "req-1", 1.5); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	got, _ = store.GetByRequestID(dbc, "req-1")
	if got.Status != execjob.StatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}

	ok, err := store.MarkTerminal(dbc, "req-1", execjob.StatusCompleted, map[string]interface{}{
		"execution_time": 2.0,
	})
	if err != nil {
		t.Fatalf("MarkTerminal: %v", err)
	}
	if !ok {
		t.Fatalf("expected MarkTerminal to affect a row")
	}

	got, _ = store.GetByRequestID(dbc, "req-1")
	if got.Status != execjob.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	// A terminal row can't be re-terminated by a second call (§3: terminal
	// states are immutable except webhook_status).
	ok, err = store.MarkTerminal(dbc, "req-1", execjob.StatusFailed, map[string]interface{}{
		"error_message": "should not apply",
	})
	if err != nil {
		t.Fatalf("second MarkTerminal: %v", err)
	}
	if ok {
		t.Fatalf("expected second MarkTerminal on a terminal row to be a no-op")
	}
	got, _ = store.GetByRequestID(dbc, "req-1")
	if got.Status != execjob.StatusCompleted {
		t.Fatalf("terminal status must not change, got %s", got.Status)
	}

	if err := store.SetWebhookStatus(dbc, "req-1", execjob.WebhookSent); err != nil {
		t.Fatalf("SetWebhookStatus: %v", err)
	}
	got, _ = store.GetByRequestID(dbc, "req-1")
	if got.WebhookStatus != execjob.WebhookSent {
		t.Fatalf("expected webhook status sent, got %s", got.WebhookStatus)
	}
}

func TestJobStoreListQueuedForRecoveryOrdering(t *testing.T) {
	conn := testDB(t)
	store := New(conn, testLogger(t))
	ctx := context.Background()
	dbc := dbctx.New(ctx, nil)

	base := time.Now()
	jobs := []*execjob.Job{
		{RequestID: "low-early", Priority: 1, Status: execjob.StatusQueued, CreatedAt: base, Script: "[]", ScriptHash: "h"},
		{RequestID: "high-late", Priority: 5, Status: execjob.StatusQueued, CreatedAt: base.Add(time.Second), Script: "[]", ScriptHash: "h"},
		{RequestID: "high-early", Priority: 5, Status: execjob.StatusQueued, CreatedAt: base, Script: "[]", ScriptHash: "h"},
	}
	for _, j := range jobs {
		if err := store.Insert(dbc, j); err != nil {
			t.Fatalf("Insert %s: %v", j.RequestID, err)
		}
	}

	recovered, err := store.ListQueuedForRecovery(dbc)
	if err != nil {
		t.Fatalf("ListQueuedForRecovery: %v", err)
	}
	if len(recovered) != 3 {
		t.Fatalf("expected 3 queued rows, got %d", len(recovered))
	}
	// priority desc, then created_at asc (§4.2).
	if recovered[0].RequestID != "high-early" || recovered[1].RequestID != "high-late" || recovered[2].RequestID != "low-early" {
		t.Fatalf("unexpected recovery order: %v", []string{recovered[0].RequestID, recovered[1].RequestID, recovered[2].RequestID})
	}
}

func TestJobStoreDailyStatUpsertAccumulates(t *testing.T) {
	conn := testDB(t)
	store := New(conn, testLogger(t))
	ctx := context.Background()
	dbc := dbctx.New(ctx, nil)

	day := time.Now()
	if err := store.UpsertDailyStat(dbc, day, DailyStatDelta{TotalJobs: 1, Successes: 1}); err != nil {
		t.Fatalf("first UpsertDailyStat: %v", err)
	}
	if err := store.UpsertDailyStat(dbc, day, DailyStatDelta{TotalJobs: 1, Failures: 1}); err != nil {
		t.Fatalf("second UpsertDailyStat: %v", err)
	}

	var stat execjob.DailyStat
	normalized := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	if err := conn.Where("day = ?", normalized).First(&stat).Error; err != nil {
		t.Fatalf("load daily stat: %v", err)
	}
	if stat.TotalJobs != 2 || stat.Successes != 1 || stat.Failures != 1 {
		t.Fatalf("unexpected accumulated daily stat: %+v", stat)
	}
}
