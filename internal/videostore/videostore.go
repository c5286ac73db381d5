// Package videostore is the content-addressed recording store of §2
// component 7 / §4.7: it owns the video root, resolves the Open
// Question on date-nesting in favor of
// <root>/<YYYY>/<MM>/<DD>/<request_id>.webm, and enforces the strict
// ownership check §3 requires on every read. The Job Store remains the
// sole authority on who owns a recording — this package takes the
// owning api_key_id as an argument rather than looking it up itself, so
// ownership decisions never drift between the two.
package videostore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// Store manages the on-disk video root. Existence of a file under the
// root is best-effort; the Job Store's video_path column is the
// authoritative record of whether a recording was ever produced.
type Store struct {
	log  *logger.Logger
	root string
}

func New(log *logger.Logger, root string) *Store {
	return &Store{log: log.With("component", "VideoStore"), root: root}
}

// Save moves an encoder's temp output into the date-nested content-
// addressed path and reports its authoritative filesystem size, per
// §3 ("Size is authoritative from the filesystem"). It implements
// executor.VideoSaver.
func (s *Store) Save(requestID string, tmpPath string) (string, float64, error) {
	now := time.Now().UTC()
	relDir := filepath.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()))
	destDir := filepath.Join(s.root, relDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir video dir: %w", err)
	}
	destPath := filepath.Join(destDir, requestID+".webm")

	if err := moveFile(tmpPath, destPath); err != nil {
		return "", 0, fmt.Errorf("move recording into place: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return destPath, 0, fmt.Errorf("stat saved recording: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	return destPath, sizeMB, nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename can fail across filesystem boundaries (e.g. tmp on tmpfs,
	// video root on a mounted volume); fall back to copy+remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, copyErr := io.Copy(out, in); copyErr != nil {
		out.Close()
		return copyErr
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Info is the filesystem metadata Stat reports for a recording. Stat
// leaves RequestID empty; the /video/{request_id}/info handler builds its
// own response from SizeMB and ModTime.
type Info struct {
	RequestID string    `json:"request_id"`
	SizeMB    float64   `json:"size_mb"`
	ModTime   time.Time `json:"mod_time"`
}

// Stat reports filesystem metadata for a recording at videoPath, per
// the GET /video/{request_id}/info endpoint of §6. Stat does no ownership
// check; callers compare the Job's api_key_id with the requester's first.
func (s *Store) Stat(videoPath string) (*Info, error) {
	info, err := os.Stat(videoPath)
	if os.IsNotExist(err) {
		return nil, apierr.NotFound(errMissingArtifact)
	}
	if err != nil {
		return nil, err
	}
	return &Info{
		SizeMB:  float64(info.Size()) / (1024 * 1024),
		ModTime: info.ModTime(),
	}, nil
}

// Open streams a recording for GET /video/{request_id}/{token}. Ownership
// is enforced here per §3 ("the Video Store MUST reject reads whose
// requesting identity does not match"): the caller supplies both the
// requester's resolved identity and the Job Store's recorded owner: a
// mismatch is Forbidden, a missing file is NotFound, never the reverse
// (ownership is checked before the filesystem is ever touched).
func (s *Store) Open(videoPath string, requesterAPIKeyID, ownerAPIKeyID int64) (io.ReadCloser, error) {
	if requesterAPIKeyID != ownerAPIKeyID {
		return nil, apierr.Forbidden(errNotOwner)
	}
	f, err := os.Open(videoPath)
	if os.IsNotExist(err) {
		return nil, apierr.NotFound(errMissingArtifact)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

type videoErr string

func (e videoErr) Error() string { return string(e) }

const (
	errMissingArtifact = videoErr("video artifact missing")
	errNotOwner        = videoErr("requester does not own this video")
)
