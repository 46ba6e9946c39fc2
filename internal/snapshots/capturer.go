package snapshots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// ErrCaptureBusy is returned when a capture is requested while another is in flight.
	ErrCaptureBusy = errors.New("snapshot capture already in progress")
	// ErrCaptureUnavailable is returned when no capturer is configured.
	ErrCaptureUnavailable = errors.New("snapshot capture unavailable")
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// CommandCapturer screenshots pages with a headless browser binary.
type CommandCapturer struct {
	Binary string
	Args   []string
	Run    CommandRunner
	Images ImageSaver
	TmpDir string
}

var _ Capturer = (*CommandCapturer)(nil)

// NewCommandCapturer renders a narrow mobile-sized viewport with the given browser.
func NewCommandCapturer(binary string, images ImageSaver) *CommandCapturer {
	if strings.TrimSpace(binary) == "" {
		binary = "chromium"
	}
	return &CommandCapturer{
		Binary: binary,
		Args:   []string{"--headless", "--disable-gpu", "--hide-scrollbars", "--window-size=375,300"},
		Run:    defaultCommandRunner,
		Images: images,
	}
}

// Capture writes a screenshot to a temp file and stores it as snapshot_<uuid>.png.
func (c *CommandCapturer) Capture(ctx context.Context, url string) (string, error) {
	if c == nil || c.Images == nil {
		return "", ErrCaptureUnavailable
	}
	run := c.Run
	if run == nil {
		run = defaultCommandRunner
	}

	dir, err := os.MkdirTemp(c.TmpDir, "snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	defer os.RemoveAll(dir)

	shot := filepath.Join(dir, "shot.png")
	args := append([]string{}, c.Args...)
	args = append(args, "--screenshot="+shot, url)

	if out, err := run(ctx, c.Binary, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", c.Binary, ctxErr)
		}
		return "", fmt.Errorf("%s: %w: %s", c.Binary, err, bytes.TrimSpace(out))
	}

	data, err := os.ReadFile(shot)
	if err != nil {
		return "", fmt.Errorf("read screenshot: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("browser produced an empty screenshot")
	}

	return c.Images.Save(ctx, "snapshot_"+uuid.NewString()+".png", bytes.NewReader(data))
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// Exclusive allows a single capture in flight; concurrent callers get ErrCaptureBusy
// instead of queueing.
type Exclusive struct {
	next Capturer
	busy atomic.Bool
}

var _ Capturer = (*Exclusive)(nil)

// NewExclusive wraps next.
func NewExclusive(next Capturer) *Exclusive {
	return &Exclusive{next: next}
}

func (e *Exclusive) Capture(ctx context.Context, url string) (string, error) {
	if e.next == nil {
		return "", ErrCaptureUnavailable
	}
	if !e.busy.CompareAndSwap(false, true) {
		return "", ErrCaptureBusy
	}
	defer e.busy.Store(false)
	return e.next.Capture(ctx, url)
}
