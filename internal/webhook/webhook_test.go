package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

type fakeStore struct {
	mu       chan struct{}
	statuses map[string]execjob.WebhookStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{mu: make(chan struct{}, 1), statuses: make(map[string]execjob.WebhookStatus)}
}

func (f *fakeStore) SetWebhookStatus(dbc dbctx.Context, requestID string, status execjob.WebhookStatus) error {
	f.statuses[requestID] = status
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

func TestDispatcherDeliversSuccessfully(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content-type, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeStore()
	d := New(testLogger(t), store, nil, Config{MaxRetries: 3, Timeout: 2 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(executor.WebhookEvent{RequestID: "req-1", Status: "completed"}, srv.URL)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.statuses["req-1"] == execjob.WebhookSent {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected webhook sent status, got %v (hits=%d)", store.statuses["req-1"], hits.Load())
}

func TestDispatcherRetriesOn5xxThenGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newFakeStore()
	d := New(testLogger(t), store, nil, Config{MaxRetries: 2, Timeout: 2 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(executor.WebhookEvent{RequestID: "req-2", Status: "failed"}, srv.URL)

	// Three attempts are separated by backoffs of 2s and 4s, so the
	// failed status lands roughly 6s after Notify.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if store.statuses["req-2"] == execjob.WebhookFailed {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if store.statuses["req-2"] != execjob.WebhookFailed {
		t.Fatalf("expected webhook failed status after exhausting retries, got %v", store.statuses["req-2"])
	}
	// MaxRetries=2 bounds total attempts to 3 (§8 invariant 8).
	if got := hits.Load(); got > 3 {
		t.Fatalf("expected at most 3 attempts, got %d", got)
	}
}

func TestDispatcherDoesNotRetryOtherFourXX(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := newFakeStore()
	d := New(testLogger(t), store, nil, Config{MaxRetries: 3, Timeout: 2 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Notify(executor.WebhookEvent{RequestID: "req-3", Status: "failed"}, srv.URL)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.statuses["req-3"] == execjob.WebhookFailed {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if store.statuses["req-3"] != execjob.WebhookFailed {
		t.Fatalf("expected immediate failure for 400, got %v", store.statuses["req-3"])
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable 4xx, got %d", got)
	}
}

func TestNextBackoffIsExponentialWithCap(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := nextBackoff(tc.attempt); got != tc.want {
			t.Errorf("nextBackoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
