package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/browserjobs-backend/internal/data/db"
	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/platform/ctxutil"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/queue"
)

const maxScriptSizeForTest = 50_000

func newTestHandler(t *testing.T) (*ExecuteHandler, jobstore.JobStore) {
	t.Helper()
	// One named in-memory database per test, so rows from earlier tests
	// don't leak into the QUEUED/FAILED counts of later ones.
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	store := jobstore.New(conn, log)
	q := queue.New(100)
	breaker := executor.NewBreaker()
	return NewExecuteHandler(log, store, q, breaker, maxScriptSizeForTest), store
}

func doExecute(t *testing.T, h *ExecuteHandler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rd := &ctxutil.RequestData{APIKeyID: 1}
	req = req.WithContext(ctxutil.WithRequestData(req.Context(), rd))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	h.Execute(c)
	return w
}

func TestExecuteHappyPath(t *testing.T) {
	h, _ := newTestHandler(t)
	script := `[{"op":"goto","args":{"url":"https://example.com"}},{"op":"return","args":{"value":{"x":1}}}]`
	w := doExecute(t, h, map[string]interface{}{"script": script, "priority": 1, "timeout_seconds": 10})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestExecuteInvalidScriptRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doExecute(t, h, map[string]interface{}{"script": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty script, got %d", w.Code)
	}
}

func TestExecuteTimeoutBoundaries(t *testing.T) {
	script := `[{"op":"return","args":{"value":1}}]`
	cases := []struct {
		name    string
		timeout int
		wantOK  bool
	}{
		{"below-min", 9, false},
		{"at-min", 10, true},
		{"at-max", 600, true},
		{"above-max", 601, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			w := doExecute(t, h, map[string]interface{}{"script": script, "timeout_seconds": tc.timeout})
			if tc.wantOK && w.Code != http.StatusAccepted {
				t.Fatalf("timeout=%d: expected accepted, got %d: %s", tc.timeout, w.Code, w.Body.String())
			}
			if !tc.wantOK && w.Code != http.StatusBadRequest {
				t.Fatalf("timeout=%d: expected bad request, got %d", tc.timeout, w.Code)
			}
		})
	}
}

func TestExecutePriorityBoundaries(t *testing.T) {
	script := `[{"op":"return","args":{"value":1}}]`
	cases := []struct {
		name     string
		priority int
		wantOK   bool
	}{
		{"below-min", 0, false},
		{"at-min", 1, true},
		{"at-max", 5, true},
		{"above-max", 6, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			w := doExecute(t, h, map[string]interface{}{"script": script, "priority": tc.priority})
			if tc.wantOK && w.Code != http.StatusAccepted {
				t.Fatalf("priority=%d: expected accepted, got %d: %s", tc.priority, w.Code, w.Body.String())
			}
			if !tc.wantOK && w.Code != http.StatusBadRequest {
				t.Fatalf("priority=%d: expected bad request, got %d", tc.priority, w.Code)
			}
		})
	}
}

func TestExecuteSameScriptTwiceProducesDistinctRequestIDs(t *testing.T) {
	h, _ := newTestHandler(t)
	script := `[{"op":"return","args":{"value":1}}]`
	w1 := doExecute(t, h, map[string]interface{}{"script": script})
	w2 := doExecute(t, h, map[string]interface{}{"script": script})

	var r1, r2 ExecuteResponse
	if err := json.Unmarshal(w1.Body.Bytes(), &r1); err != nil {
		t.Fatalf("unmarshal r1: %v", err)
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &r2); err != nil {
		t.Fatalf("unmarshal r2: %v", err)
	}
	if r1.RequestID == "" || r2.RequestID == "" || r1.RequestID == r2.RequestID {
		t.Fatalf("expected two distinct non-empty request IDs, got %q and %q", r1.RequestID, r2.RequestID)
	}
}

func TestExecuteQueueFullRejectsBeyondCapacity(t *testing.T) {
	h, store := newTestHandler(t)
	h.q = queue.New(2)
	script := `[{"op":"return","args":{"value":1}}]`

	w1 := doExecute(t, h, map[string]interface{}{"script": script})
	w2 := doExecute(t, h, map[string]interface{}{"script": script})
	w3 := doExecute(t, h, map[string]interface{}{"script": script})

	if w1.Code != http.StatusAccepted || w2.Code != http.StatusAccepted {
		t.Fatalf("expected first two submissions accepted, got %d and %d", w1.Code, w2.Code)
	}
	if w3.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected third submission to be queue-full (503), got %d: %s", w3.Code, w3.Body.String())
	}

	// The third submission's row was inserted as QUEUED before Enqueue
	// rejected it; it must not be left stuck in QUEUED forever.
	dbc := dbctx.New(context.Background(), nil)
	queuedCount, err := store.CountByStatus(dbc, execjob.StatusQueued)
	if err != nil {
		t.Fatalf("count queued: %v", err)
	}
	if queuedCount != 2 {
		t.Fatalf("expected exactly the 2 accepted jobs to remain QUEUED, got %d", queuedCount)
	}
	failedCount, err := store.CountByStatus(dbc, execjob.StatusFailed)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if failedCount != 1 {
		t.Fatalf("expected the queue-full rejection to mark its row FAILED, got %d failed rows", failedCount)
	}
}
