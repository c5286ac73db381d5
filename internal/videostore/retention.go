package videostore

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SweepResult reports what one retention pass removed, for the Cleanup
// Scheduler to fold into the daily_stats rollup and to log (§4.7/§9:
// "no silent caps" — callers surface what was dropped).
type SweepResult struct {
	DeletedPaths    []string
	DeletedDirs     int
	FailedToRemove  []string
}

// RemoveOlderThan walks the video root and deletes every *.webm whose
// mtime is older than cutoff (§4.7 pt.1). It does not touch the Job
// Store; the Cleanup Scheduler is responsible for nulling out
// video_path on the rows matching DeletedPaths (per §3, "absence after
// a retention sweep is allowed and must not produce a broken link").
func (s *Store) RemoveOlderThan(cutoff time.Time) (*SweepResult, error) {
	res := &SweepResult{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".webm" {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			res.FailedToRemove = append(res.FailedToRemove, path)
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr != nil {
				res.FailedToRemove = append(res.FailedToRemove, path)
				return nil
			}
			res.DeletedPaths = append(res.DeletedPaths, path)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// PruneEmptyDirs removes empty date-nested subdirectories left behind
// by a retention sweep (§4.7 pt.3). It never removes the root itself.
func (s *Store) PruneEmptyDirs() (int, error) {
	removed := 0
	// Walk bottom-up by collecting dirs first, then removing deepest-first,
	// since a single top-down WalkDir pass can't see a dir become empty
	// after its children are evaluated.
	var dirs []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != s.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		entries, rdErr := os.ReadDir(dir)
		if rdErr != nil {
			continue
		}
		if len(entries) == 0 {
			if rmErr := os.Remove(dir); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// RequestIDFromPath extracts a job's request_id from a saved video path,
// so the Cleanup Scheduler can correlate a deleted file back to its Job
// Store row without round-tripping through the directory layout.
func RequestIDFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
