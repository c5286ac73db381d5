// Package observability wires the real github.com/prometheus/client_golang
// library for the /metrics text exposition spec §8 requires, in place of
// the teacher's hand-rolled exposition-format writer
// (internal/observability/metrics.go upstream). Several pack repos
// (other_examples' Alterspective-Engine-dot-to-docx-converter,
// flyingrobots-go-redis-work-queue) depend on client_golang directly for
// the same promauto counter/gauge/histogram idiom used here.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the §8 counter/gauge set: per-request HTTP instrumentation,
// the queue/running/browser-pool gauges App.runGaugeLoop refreshes, the
// terminal-job counter the Executor increments, and the webhook outcome
// counter the dispatcher increments.
type Metrics struct {
	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	queueDepth       prometheus.Gauge
	runningJobs      prometheus.Gauge
	browserPoolAvail prometheus.Gauge

	jobsTotal   *prometheus.CounterVec
	webhookSent *prometheus.CounterVec
}

// New registers a fresh metric set against the default registry.
// promauto panics on duplicate registration, so New must be called only
// once per process (app.New does so on startup). Every method is safe on
// a nil *Metrics, which is what the tests pass instead of calling New.
func New() *Metrics {
	return &Metrics{
		apiRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "browserjobs_api_requests_total",
			Help: "Total HTTP requests handled by the execution API, by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "browserjobs_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method/route/status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		apiInflight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "browserjobs_api_inflight_requests",
			Help: "HTTP requests currently being handled.",
		}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "browserjobs_queue_depth",
			Help: "Current number of jobs held in the priority queue.",
		}),
		runningJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "browserjobs_running_jobs",
			Help: "Current number of jobs in the RUNNING state.",
		}),
		browserPoolAvail: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "browserjobs_browser_pool_available",
			Help: "Current number of idle browsers available in the pool.",
		}),
		jobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "browserjobs_jobs_total",
			Help: "Total terminal jobs, by status.",
		}, []string{"status"}),
		webhookSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "browserjobs_webhook_deliveries_total",
			Help: "Total webhook delivery attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetRunningJobs(n int) {
	if m == nil {
		return
	}
	m.runningJobs.Set(float64(n))
}

func (m *Metrics) SetBrowserPoolAvailable(n int) {
	if m == nil {
		return
	}
	m.browserPoolAvail.Set(float64(n))
}

func (m *Metrics) ObserveTerminalJob(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveWebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhookSent.WithLabelValues(outcome).Inc()
}
