// Package executor is the per-job execution core of §4.5: browser
// context lease, recording, timeout enforcement, resource accounting,
// and the terminal Job Store write that precedes the webhook enqueue.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/yungbote/browserjobs-backend/internal/browserpool"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/observability"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/validator"
)

const videoWidthDefault = 1280
const videoHeightDefault = 720

// Request is everything the Executor needs about a dequeued job; it is
// a flattened view of execjob.Job plus the moment it left the queue.
type Request struct {
	RequestID      string
	APIKeyID       int64
	Script         string
	ScriptHash     string
	TimeoutSeconds int
	WebhookURL     string
	UserAgent      string
	Tags           []string
	EnqueuedAt     time.Time
}

// VideoSaver moves an encoded recording into content-addressed storage.
// Implemented by internal/videostore; declared here so this package
// doesn't import it back (videostore has no reason to know about
// execution internals).
type VideoSaver interface {
	Save(requestID string, tmpPath string) (path string, sizeMB float64, err error)
}

// WebhookEvent is the fixed JSON envelope of §4.6, independent of the
// dispatcher's retry mechanics.
type WebhookEvent struct {
	EventType     string      `json:"event_type"`
	RequestID     string      `json:"request_id"`
	APIKeyID      int64       `json:"api_key_id"`
	Status        string      `json:"status"`
	ExecutionTime float64     `json:"execution_time"`
	VideoURL      string      `json:"video_url,omitempty"`
	Result        interface{} `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Notifier hands a terminal job's webhook event to the dispatcher.
type Notifier interface {
	Notify(evt WebhookEvent, webhookURL string)
}

type Store interface {
	MarkRunning(dbc dbctx.Context, requestID string, queueWaitSeconds float64) error
	MarkTerminal(dbc dbctx.Context, requestID string, status execjob.Status, fields map[string]interface{}) (bool, error)
}

type Config struct {
	MaxExecutionTime           time.Duration
	EmergencyTimeoutMultiplier int
	VideoWidth                 int
	VideoHeight                int
	FFmpegPath                 string
}

type Executor struct {
	log      *logger.Logger
	store    Store
	videos   VideoSaver
	notifier Notifier
	breaker  *Breaker
	metrics  *observability.Metrics
	cfg      Config
}

func New(log *logger.Logger, store Store, videos VideoSaver, notifier Notifier, breaker *Breaker, metrics *observability.Metrics, cfg Config) *Executor {
	if cfg.VideoWidth <= 0 {
		cfg.VideoWidth = videoWidthDefault
	}
	if cfg.VideoHeight <= 0 {
		cfg.VideoHeight = videoHeightDefault
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.EmergencyTimeoutMultiplier <= 0 {
		cfg.EmergencyTimeoutMultiplier = 2
	}
	return &Executor{
		log:      log.With("component", "Executor"),
		store:    store,
		videos:   videos,
		notifier: notifier,
		breaker:  breaker,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run executes one dequeued job against a leased browser. The caller
// (the scheduler) owns Acquire/Release of the browser and panic
// recovery around this call; Run itself never panics on script error —
// only a genuine implementation bug would.
func (e *Executor) Run(ctx context.Context, req Request, browser *browserpool.Browser) {
	start := time.Now()
	queueWait := start.Sub(req.EnqueuedAt).Seconds()
	dbc := dbctx.New(ctx, nil)

	if err := e.store.MarkRunning(dbc, req.RequestID, queueWait); err != nil {
		e.log.Error("mark running failed", "request_id", req.RequestID, "error", err)
	}

	emergency := req.TimeoutSeconds * e.cfg.EmergencyTimeoutMultiplier
	emergencyDeadline := time.Duration(emergency) * time.Second
	if e.cfg.MaxExecutionTime > 0 && e.cfg.MaxExecutionTime < emergencyDeadline {
		emergencyDeadline = e.cfg.MaxExecutionTime
	}
	outerCtx, outerCancel := context.WithTimeout(ctx, emergencyDeadline)
	defer outerCancel()

	tabCtx, tabCancel := chromedp.NewContext(browser.AllocContext())
	defer tabCancel()

	rec, recErr := newRecorder(e.cfg.VideoWidth, e.cfg.VideoHeight, e.cfg.FFmpegPath)
	if recErr != nil {
		e.log.Warn("recorder init failed, continuing without recording", "request_id", req.RequestID, "error", recErr)
	}

	if err := chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(e.cfg.VideoWidth), int64(e.cfg.VideoHeight), 1.0, false),
	); err != nil {
		e.log.Warn("set viewport failed", "request_id", req.RequestID, "error", err)
	}
	if req.UserAgent != "" {
		if err := chromedp.Run(tabCtx, emulation.SetUserAgentOverride(req.UserAgent)); err != nil {
			e.log.Warn("set user agent failed", "request_id", req.RequestID, "error", err)
		}
	}

	if rec != nil {
		if err := rec.start(tabCtx); err != nil {
			e.log.Warn("start recording failed", "request_id", req.RequestID, "error", err)
		}
	}

	baseline, baseErr := sampleSelf()
	if baseErr != nil {
		e.log.Warn("baseline resource sample failed", "error", baseErr)
	}
	peakRSS := baseline.rssMB
	var stopSampling atomic.Bool
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if stopSampling.Load() {
					return
				}
				if s, err := sampleSelf(); err == nil && s.rssMB > peakRSS {
					peakRSS = s.rssMB
				}
			case <-outerCtx.Done():
				return
			}
		}
	}()

	ops, parseErr := validator.ParseOps(req.Script)

	var result interface{}
	var runErr error
	timedOut := false

	if parseErr != nil {
		runErr = parseErr
	} else {
		jobCtx, jobCancel := context.WithTimeout(tabCtx, time.Duration(req.TimeoutSeconds)*time.Second)
		// jobCtx derives from the tab context, not from ctx; the emergency
		// deadline (and the worker's own cancellation) reach it through outerCtx.
		stopOuter := context.AfterFunc(outerCtx, jobCancel)
		result, runErr = runOps(jobCtx, ops)
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) || errors.Is(outerCtx.Err(), context.DeadlineExceeded) {
			timedOut = true
		}
		stopOuter()
		jobCancel()
	}

	stopSampling.Store(true)
	after, afterErr := sampleSelf()
	if afterErr != nil {
		after = baseline
	}
	cpuDeltaMS := after.cpuTimeMS - baseline.cpuTimeMS
	if cpuDeltaMS < 0 {
		cpuDeltaMS = 0
	}

	if rec != nil {
		rec.stop(tabCtx)
	}
	tabCancel() // finalizes the browser context; recording is flushed.

	var videoPath *string
	var videoSizeMB float64
	if rec != nil {
		tmpOut := filepath.Join(rec.frameDir, req.RequestID+".webm")
		if encErr := rec.encode(context.Background(), tmpOut); encErr != nil {
			e.log.Warn("video encode skipped", "request_id", req.RequestID, "error", encErr)
		} else if e.videos != nil {
			if path, sizeMB, saveErr := e.videos.Save(req.RequestID, tmpOut); saveErr != nil {
				e.log.Warn("video save failed", "request_id", req.RequestID, "error", saveErr)
			} else {
				videoPath = &path
				videoSizeMB = sizeMB
			}
		}
		rec.cleanup()
	}

	executionSeconds := time.Since(start).Seconds()

	var status execjob.Status
	var errMsg string
	var resultJSON json.RawMessage

	switch {
	case timedOut:
		status = execjob.StatusTimeout
		errMsg = "execution timed out"
	case runErr != nil:
		status = execjob.StatusFailed
		errMsg = runErr.Error()
	default:
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			status = execjob.StatusFailed
			errMsg = "unmarshalable result: " + marshalErr.Error()
		} else {
			status = execjob.StatusCompleted
			resultJSON = raw
		}
	}

	if status == execjob.StatusCompleted {
		e.breaker.RecordSuccess(req.ScriptHash)
	} else {
		e.breaker.RecordFailure(req.ScriptHash)
	}
	if e.metrics != nil {
		e.metrics.ObserveTerminalJob(string(status))
	}

	fields := map[string]interface{}{
		"execution_time": executionSeconds,
		"memory_peak_mb": peakRSS - baseline.rssMB,
		"cpu_time_ms":    cpuDeltaMS,
		"video_size_mb":  videoSizeMB,
		"error_message":  errMsg,
	}
	if videoPath != nil {
		fields["video_path"] = *videoPath
	}
	if resultJSON != nil {
		fields["result"] = resultJSON
	}

	dbc = dbctx.New(context.Background(), nil)
	if _, err := e.store.MarkTerminal(dbc, req.RequestID, status, fields); err != nil {
		e.log.Error("mark terminal failed", "request_id", req.RequestID, "error", err)
	}

	if req.WebhookURL != "" && e.notifier != nil {
		evt := WebhookEvent{
			EventType:     "job." + string(status),
			RequestID:     req.RequestID,
			APIKeyID:      req.APIKeyID,
			Status:        string(status),
			ExecutionTime: executionSeconds,
			Error:         errMsg,
			Timestamp:     time.Now(),
		}
		if videoPath != nil {
			evt.VideoURL = fmt.Sprintf("/video/%s", req.RequestID)
		}
		if resultJSON != nil {
			_ = json.Unmarshal(resultJSON, &evt.Result)
		}
		e.notifier.Notify(evt, req.WebhookURL)
	}
}
