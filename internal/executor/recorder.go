package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// recorder captures the browser context's screencast frames to a temp
// directory; encode muxes them into a .webm after stop. This is the teacher's
// "shell out to a required binary" idiom (formerly
// internal/platform/localmedia's ffmpeg calls for audio/keyframe
// extraction) repointed at encoding video instead of extracting from it.
type recorder struct {
	frameDir   string
	frameCount atomic.Int64
	width      int
	height     int
	ffmpegPath string

	mu      sync.Mutex
	started bool
}

func newRecorder(width, height int, ffmpegPath string) (*recorder, error) {
	dir, err := os.MkdirTemp("", "execrec-*")
	if err != nil {
		return nil, fmt.Errorf("create recording tmpdir: %w", err)
	}
	return &recorder{frameDir: dir, width: width, height: height, ffmpegPath: ffmpegPath}, nil
}

// start begins a screencast on the page context, writing each frame to
// disk as it arrives. Best-effort: a frame that fails to decode or write
// is dropped silently, never surfaced as a job failure — recording must
// never abort script execution. The returned error only reports whether
// the screencast could be started.
func (r *recorder) start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go func() {
			data, err := base64.StdEncoding.DecodeString(frame.Data)
			if err == nil {
				idx := r.frameCount.Add(1)
				path := filepath.Join(r.frameDir, fmt.Sprintf("frame_%06d.png", idx))
				_ = os.WriteFile(path, data, 0o644)
			}
			_ = chromedp.Run(ctx, page.ScreencastFrameAck(frame.SessionID))
		}()
	})

	format := page.ScreencastFormatPng
	return chromedp.Run(ctx, page.StartScreencast().
		WithFormat(format).
		WithMaxWidth(int64(r.width)).
		WithMaxHeight(int64(r.height)).
		WithEveryNthFrame(1))
}

func (r *recorder) stop(ctx context.Context) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return
	}
	_ = chromedp.Run(ctx, page.StopScreencast())
	// Give in-flight frame-write goroutines a moment to land before encode.
	time.Sleep(200 * time.Millisecond)
}

// encode muxes the captured frames into outPath at 10fps. If no frames
// were captured (context closed before any arrived), this is a no-op —
// per §4.5's "recording recovery under failure", artifact existence is
// best-effort and never blocks the Job Store update.
func (r *recorder) encode(ctx context.Context, outPath string) error {
	if r.frameCount.Load() == 0 {
		return errNoFrames
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir video dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, r.ffmpegPath,
		"-y",
		"-framerate", "10",
		"-i", filepath.Join(r.frameDir, "frame_%06d.png"),
		"-c:v", "libvpx",
		"-pix_fmt", "yuv420p",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg encode failed: %w; out=%s", err, string(out))
	}
	return nil
}

func (r *recorder) cleanup() {
	_ = os.RemoveAll(r.frameDir)
}

type recorderErr string

func (e recorderErr) Error() string { return string(e) }

const errNoFrames = recorderErr("no screencast frames captured")
