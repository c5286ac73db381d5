package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// SQLiteService wraps the gorm handle onto the file-backed SQLite store
// spec §6's `database_path` configuration knob names.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger, path string) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain sql.DB handle: %w", err)
	}
	// SQLite serializes writers; a single open connection avoids
	// "database is locked" errors under concurrent workers.
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteService{db: conn, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

// Compact runs the retention-schedule's SQL-store compaction step (§4.7
// pt.4): VACUUM reclaims space from deleted rows, ANALYZE refreshes the
// query planner's statistics for the (status, priority, created_at) and
// (api_key_id, created_at) indexes.
func (s *SQLiteService) Compact() error {
	if err := s.db.Exec("VACUUM").Error; err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if err := s.db.Exec("ANALYZE").Error; err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return nil
}
