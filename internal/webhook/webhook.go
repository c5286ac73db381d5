// Package webhook is the outbound notification dispatcher of §4.6: a
// single-owner retry queue (heap keyed by next-attempt-time, per §9's
// design note) that delivers the fixed JSON envelope with bounded,
// exponential-backoff retry. Grounded on RomanQed-gqs's Worker/backoff
// shape (single owner pulls and dispatches; other components only
// enqueue) adapted from gqs's general power-law backoff to this spec's
// explicit min(60s, 2^attempt) formula, and on the teacher's
// internal/jobs/worker heartbeat-goroutine idiom for how a background
// owner coexists with request-serving goroutines. Outbound HTTP uses
// plain net/http, matching the teacher's own thin-wrapper outbound
// clients (openai, sendgrid, twilio) rather than reaching for a REST
// client library nothing else in the pack uses.
package webhook

import (
	"bytes"
	"container/heap"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/observability"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// Store is the subset of jobstore.JobStore the dispatcher needs to
// record delivery outcome on the owning Job row.
type Store interface {
	SetWebhookStatus(dbc dbctx.Context, requestID string, status execjob.WebhookStatus) error
}

type Config struct {
	MaxRetries int
	Timeout    time.Duration
}

// delivery is one pending attempt. attempt counts completed tries (0
// before the first send), so MaxRetries bounds total attempts to
// MaxRetries+1, matching §8 invariant 8.
type delivery struct {
	evt         executor.WebhookEvent
	url         string
	attempt     int
	nextAttempt time.Time
}

type deliveryHeap []*delivery

func (h deliveryHeap) Len() int            { return len(h) }
func (h deliveryHeap) Less(i, j int) bool  { return h[i].nextAttempt.Before(h[j].nextAttempt) }
func (h deliveryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deliveryHeap) Push(x interface{}) { *h = append(*h, x.(*delivery)) }
func (h *deliveryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Dispatcher is the single owner of the retry heap; every other
// component only calls Notify, which hands off over a channel (§5's
// shared-resource table: "Webhook retry queue | Dispatcher | single
// owner; other components only enqueue").
type Dispatcher struct {
	log     *logger.Logger
	store   Store
	cfg     Config
	client  *http.Client
	metrics *observability.Metrics

	incoming chan *delivery

	mu   sync.Mutex
	heap deliveryHeap
}

func New(log *logger.Logger, store Store, metrics *observability.Metrics, cfg Config) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		log:      log.With("component", "WebhookDispatcher"),
		store:    store,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		metrics:  metrics,
		incoming: make(chan *delivery, 256),
	}
}

// Notify implements executor.Notifier: it hands the terminal event off
// to the dispatcher's owning goroutine without blocking the Executor.
func (d *Dispatcher) Notify(evt executor.WebhookEvent, webhookURL string) {
	if webhookURL == "" {
		return
	}
	select {
	case d.incoming <- &delivery{evt: evt, url: webhookURL, nextAttempt: time.Now()}:
	default:
		d.log.Error("webhook incoming channel full, dropping delivery", "request_id", evt.RequestID)
	}
}

// Start launches the single owning goroutine. A restart loses any
// in-heap retries (§4.6: "accepted loss, documented") since the heap is
// in-memory only.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-d.incoming:
			d.mu.Lock()
			heap.Push(&d.heap, item)
			d.mu.Unlock()
		case <-ticker.C:
			d.drainDue(ctx)
		}
	}
}

func (d *Dispatcher) drainDue(ctx context.Context) {
	now := time.Now()
	for {
		d.mu.Lock()
		if len(d.heap) == 0 || d.heap[0].nextAttempt.After(now) {
			d.mu.Unlock()
			return
		}
		item := heap.Pop(&d.heap).(*delivery)
		d.mu.Unlock()
		d.attempt(ctx, item)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, item *delivery) {
	item.attempt++
	ok, retryable := d.send(ctx, item)

	if ok {
		d.markOutcome(item.evt.RequestID, execjob.WebhookSent)
		if d.metrics != nil {
			d.metrics.ObserveWebhookOutcome("sent")
		}
		return
	}

	if !retryable || item.attempt > d.cfg.MaxRetries {
		d.markOutcome(item.evt.RequestID, execjob.WebhookFailed)
		if d.metrics != nil {
			d.metrics.ObserveWebhookOutcome("failed")
		}
		d.log.Error("webhook delivery exhausted retries", "request_id", item.evt.RequestID, "attempts", item.attempt)
		return
	}

	backoff := nextBackoff(item.attempt)
	item.nextAttempt = time.Now().Add(backoff)
	d.mu.Lock()
	heap.Push(&d.heap, item)
	d.mu.Unlock()
}

// nextBackoff implements §4.6's exact formula: min(60s, 2^attempt).
func nextBackoff(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt))
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs * float64(time.Second))
}

// send performs one HTTP POST attempt. The second return value reports
// whether a failure is retryable per §4.6: network errors, timeouts,
// 5xx, and 429 are retryable; other 4xx are not.
func (d *Dispatcher) send(ctx context.Context, item *delivery) (bool, bool) {
	body, err := json.Marshal(item.evt)
	if err != nil {
		d.log.Error("marshal webhook payload failed", "request_id", item.evt.RequestID, "error", err)
		return false, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.url, bytes.NewReader(body))
	if err != nil {
		return false, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("webhook delivery transport error", "request_id", item.evt.RequestID, "attempt", item.attempt, "error", err)
		return false, true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, false
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, true
	case resp.StatusCode >= 500:
		return false, true
	default:
		d.log.Warn("webhook delivery rejected, not retrying", "request_id", item.evt.RequestID, "status", resp.StatusCode)
		return false, false
	}
}

func (d *Dispatcher) markOutcome(requestID string, status execjob.WebhookStatus) {
	dbc := dbctx.New(context.Background(), nil)
	if err := d.store.SetWebhookStatus(dbc, requestID, status); err != nil {
		d.log.Error("record webhook outcome failed", "request_id", requestID, "error", err)
	}
}
