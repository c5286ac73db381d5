package videostore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}

func TestSaveIsContentAddressedAndDateNested(t *testing.T) {
	root := t.TempDir()
	s := New(testLogger(t), root)

	tmp := filepath.Join(t.TempDir(), "frame_out.webm")
	if err := os.WriteFile(tmp, []byte("fake webm data"), 0o644); err != nil {
		t.Fatalf("write tmp file: %v", err)
	}

	path, sizeMB, err := s.Save("req-123", tmp)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "req-123.webm" {
		t.Fatalf("expected content-addressed filename, got %s", path)
	}
	now := time.Now().UTC()
	expectDir := filepath.Join(root, now.Format("2006"), now.Format("01"), now.Format("02"))
	if filepath.Dir(path) != expectDir {
		t.Fatalf("expected date-nested dir %s, got %s", expectDir, filepath.Dir(path))
	}
	if sizeMB <= 0 {
		t.Fatalf("expected positive size, got %f", sizeMB)
	}
}

func TestOpenRejectsNonOwner(t *testing.T) {
	root := t.TempDir()
	s := New(testLogger(t), root)

	tmp := filepath.Join(t.TempDir(), "frame_out.webm")
	_ = os.WriteFile(tmp, []byte("data"), 0o644)
	path, _, err := s.Save("req-abc", tmp)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := s.Open(path, 2, 1); err == nil {
		t.Fatalf("expected forbidden error for mismatched identity")
	}
	rc, err := s.Open(path, 1, 1)
	if err != nil {
		t.Fatalf("expected owner to open recording: %v", err)
	}
	rc.Close()
}

func TestOpenMissingArtifactIsNotFound(t *testing.T) {
	root := t.TempDir()
	s := New(testLogger(t), root)
	if _, err := s.Open(filepath.Join(root, "2099", "01", "01", "gone.webm"), 1, 1); err == nil {
		t.Fatalf("expected not-found error for missing artifact")
	}
}

func TestRemoveOlderThanDeletesStaleRecordings(t *testing.T) {
	root := t.TempDir()
	s := New(testLogger(t), root)

	dir := filepath.Join(root, "2020", "01", "01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(dir, "old.webm")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	res, err := s.RemoveOlderThan(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("RemoveOlderThan: %v", err)
	}
	if len(res.DeletedPaths) != 1 {
		t.Fatalf("expected 1 deleted path, got %d", len(res.DeletedPaths))
	}
	if _, statErr := os.Stat(stale); !os.IsNotExist(statErr) {
		t.Fatalf("expected stale file to be removed")
	}

	removed, err := s.PruneEmptyDirs()
	if err != nil {
		t.Fatalf("PruneEmptyDirs: %v", err)
	}
	if removed == 0 {
		t.Fatalf("expected at least one empty dir pruned")
	}
}
