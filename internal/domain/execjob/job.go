// Package execjob holds the gorm-mapped types for a submitted browser
// automation job and the tables it sits alongside in the persisted
// schema (§6 of the service's external-interface contract).
package execjob

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/datatypes"
)

// Fingerprint is the hex strong hash of a script's text (§3): the only
// identity the circuit breaker and dedup logging use to correlate
// repeated submissions of the same script.
func Fingerprint(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Status values form the lifecycle in spec §3. Only the transitions
// QUEUED->RUNNING->{COMPLETED,FAILED,TIMED_OUT} and QUEUED->FAILED,
// RUNNING->FAILED are valid; nothing moves a job out of a terminal state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// WebhookStatus tracks the outbound-delivery sub-field, which is the one
// part of a terminal row still mutable after the row reaches a terminal
// Status.
type WebhookStatus string

const (
	WebhookNone    WebhookStatus = ""
	WebhookPending WebhookStatus = "pending"
	WebhookSent    WebhookStatus = "sent"
	WebhookFailed  WebhookStatus = "failed"
)

// Job is one submitted script execution, keyed by a server-assigned
// request_id. It is the single row of record the rest of the pipeline
// coordinates against; the Priority Queue and circuit breaker hold only
// derived, in-memory views of it.
type Job struct {
	RequestID string `gorm:"column:request_id;primaryKey"`

	APIKeyID int64 `gorm:"column:api_key_id;not null;index"`

	Script     string `gorm:"column:script;not null"`
	ScriptHash string `gorm:"column:script_hash;not null;index"`
	ScriptSize int    `gorm:"column:script_size;not null"`

	Priority       int    `gorm:"column:priority;not null"`
	TimeoutSeconds int    `gorm:"column:timeout_seconds;not null"`
	WebhookURL     string `gorm:"column:webhook_url"`
	UserAgent      string `gorm:"column:user_agent"`
	Tags           datatypes.JSON `gorm:"column:tags"`

	Status Status `gorm:"column:status;not null;index:idx_status_priority_created"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_status_priority_created;index:idx_apikey_created"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	QueueWaitSeconds float64 `gorm:"column:queue_wait_time"`
	ExecutionSeconds float64 `gorm:"column:execution_time"`
	MemoryPeakMB     float64 `gorm:"column:memory_peak_mb"`
	CPUTimeMS        int64   `gorm:"column:cpu_time_ms"`

	VideoPath   *string `gorm:"column:video_path"`
	VideoSizeMB float64 `gorm:"column:video_size_mb"`

	ErrorMessage string         `gorm:"column:error_message"`
	Result       datatypes.JSON `gorm:"column:result"`

	WebhookStatus WebhookStatus `gorm:"column:webhook_status"`
}

func (Job) TableName() string { return "executions" }

// APIKey mirrors the schema the external auth collaborator owns. This
// service only migrates the table; no code path reads or writes it. In
// particular IsActive is not checked, and WebhookURL is not used as a
// fallback: a job's webhook fires only when the job itself has a
// webhook_url.
type APIKey struct {
	ID                 int64          `gorm:"column:id;primaryKey;autoIncrement"`
	KeyValue           string         `gorm:"column:key_value;uniqueIndex;not null"`
	Name               string         `gorm:"column:name"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null"`
	LastUsed           *time.Time     `gorm:"column:last_used"`
	IsActive           bool           `gorm:"column:is_active;not null;default:true"`
	RateLimitPerMinute int            `gorm:"column:rate_limit_per_minute"`
	TotalRequests      int64          `gorm:"column:total_requests"`
	Scopes             datatypes.JSON `gorm:"column:scopes"`
	ExpiresAt          *time.Time     `gorm:"column:expires_at"`
	WebhookURL         string         `gorm:"column:webhook_url"`
	Notes              string         `gorm:"column:notes"`
}

func (APIKey) TableName() string { return "api_keys" }

// DailyStat is a supplemented feature (original_source/app/database.py's
// daily_stats table): a cheap longitudinal rollup the Cleanup Scheduler
// upserts once per run. The Health Aggregator does not read it.
type DailyStat struct {
	Day               time.Time `gorm:"column:day;primaryKey"`
	TotalJobs         int64     `gorm:"column:total_jobs"`
	Successes         int64     `gorm:"column:successes"`
	Failures          int64     `gorm:"column:failures"`
	TotalExecutionSec float64   `gorm:"column:total_execution_sec"`
	TotalQueueWaitSec float64   `gorm:"column:total_queue_wait_sec"`
	UniqueAPIKeys     int64     `gorm:"column:unique_api_keys"`
	VideosCreated     int64     `gorm:"column:videos_created"`
	VideosDeleted     int64     `gorm:"column:videos_deleted"`
}

func (DailyStat) TableName() string { return "daily_stats" }
