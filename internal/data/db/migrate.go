package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
)

// Migrate creates/updates the three tables of §6's persisted state layout
// and the two composite indexes the query patterns in §6 and §8 rely on
// ((status, priority desc, created_at) for queue-recovery and
// queue/status scans; (api_key_id, created_at desc) for per-key history).
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&execjob.Job{},
		&execjob.APIKey{},
		&execjob.DailyStat{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if err := conn.Exec(
		`CREATE INDEX IF NOT EXISTS idx_executions_status_priority_created
		 ON executions (status, priority DESC, created_at)`,
	).Error; err != nil {
		return fmt.Errorf("create status/priority/created index: %w", err)
	}

	if err := conn.Exec(
		`CREATE INDEX IF NOT EXISTS idx_executions_apikey_created
		 ON executions (api_key_id, created_at DESC)`,
	).Error; err != nil {
		return fmt.Errorf("create api_key/created index: %w", err)
	}

	return nil
}
