package app

import (
	"time"

	"github.com/yungbote/browserjobs-backend/internal/platform/envutil"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// Config holds every knob spec §6 enumerates plus the supplemented
// emergency-timeout multiplier (§C), read once at startup per the
// teacher's LoadConfig pattern — no runtime reloads.
type Config struct {
	Port string

	MaxConcurrentExecutions int
	MaxQueueSize            int
	MaxScriptSize           int
	MaxExecutionTime        time.Duration

	VideoRetentionDays int
	VideoCleanupHour   int
	VideoWidth         int
	VideoHeight        int
	VideoRoot          string

	BrowserPoolSize       int
	BrowserWarmupPages    int
	BrowserAcquireTimeout time.Duration

	MaxWebhookRetries int
	WebhookTimeout    time.Duration

	DatabasePath string

	EmergencyTimeoutMultiplier int

	FFmpegPath string

	CORSAllowedOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port: envutil.Str("PORT", "8080"),

		MaxConcurrentExecutions: envutil.Int("MAX_CONCURRENT_EXECUTIONS", 10),
		MaxQueueSize:            envutil.Int("MAX_QUEUE_SIZE", 100),
		MaxScriptSize:           envutil.Int("MAX_SCRIPT_SIZE", 50_000),
		MaxExecutionTime:        envutil.Duration("MAX_EXECUTION_TIME", 900),

		VideoRetentionDays: envutil.Int("VIDEO_RETENTION_DAYS", 30),
		VideoCleanupHour:   envutil.Int("VIDEO_CLEANUP_HOUR", 2),
		VideoWidth:         envutil.Int("VIDEO_WIDTH", 1280),
		VideoHeight:        envutil.Int("VIDEO_HEIGHT", 720),
		VideoRoot:          envutil.Str("VIDEO_ROOT", "./data/videos"),

		BrowserPoolSize:       envutil.Int("BROWSER_POOL_SIZE", 10),
		BrowserWarmupPages:    envutil.Int("BROWSER_WARMUP_PAGES", 2),
		BrowserAcquireTimeout: envutil.Duration("BROWSER_ACQUIRE_TIMEOUT_SECONDS", 30),

		MaxWebhookRetries: envutil.Int("MAX_WEBHOOK_RETRIES", 3),
		WebhookTimeout:    envutil.Duration("WEBHOOK_TIMEOUT_SECONDS", 10),

		DatabasePath: envutil.Str("DATABASE_PATH", "./data/browserjobs.db"),

		EmergencyTimeoutMultiplier: envutil.Int("EMERGENCY_TIMEOUT_MULTIPLIER", 2),

		FFmpegPath: envutil.Str("FFMPEG_PATH", "ffmpeg"),

		CORSAllowedOrigins: envutil.StrSlice("CORS_ALLOWED_ORIGINS", nil),
	}
	log.Info("Configuration loaded",
		"max_concurrent_executions", cfg.MaxConcurrentExecutions,
		"max_queue_size", cfg.MaxQueueSize,
		"browser_pool_size", cfg.BrowserPoolSize,
		"database_path", cfg.DatabasePath,
		"video_root", cfg.VideoRoot,
	)
	return cfg
}
