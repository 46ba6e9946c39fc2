// Package snapshots retries page snapshot captures for assets saved without a cover
// image.
package snapshots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/stashlink/backend/internal/logging"
	"github.com/stashlink/backend/internal/models"
	"github.com/stashlink/backend/internal/repositories"
)

const (
	DefaultCaptureTimeout = 10 * time.Second
	DefaultInterval       = 500 * time.Millisecond
	DefaultDebounce       = 2 * time.Second
)

// Config tunes the scheduler. Zero values use the defaults above.
type Config struct {
	CaptureTimeout time.Duration
	Interval       time.Duration
	Debounce       time.Duration
}

// Summary counts the outcomes of one batch.
type Summary struct {
	Candidates int `json:"candidates"`
	Succeeded  int `json:"succeeded"`
	Retrying   int `json:"retrying"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Scheduler drives the pending → succeeded|failed state machine.
type Scheduler struct {
	store    Store
	capturer Capturer
	policy   Policy
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler constructs a scheduler over store and capturer.
func NewScheduler(store Store, capturer Capturer, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		capturer: capturer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RunPending processes a point-in-time copy of the pending candidates one at a time.
// Each attempt is recorded before capturing so a crash still consumes retry budget.
// Capture failures are absorbed. A candidate another runner settled, exhausted or
// removed is skipped. Other store errors on one candidate do not stop the batch and
// are returned together once it finishes; listing errors, a closed store and
// cancellation end the batch immediately.
func (s *Scheduler) RunPending(ctx context.Context) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("snapshot batch already running")
		return Summary{}, nil
	}
	defer s.running.Store(false)

	ctx, span := logging.StartSpan(logging.WithLogger(ctx, s.logger), "snapshots.run_pending")
	logger := span.Logger()

	var summary Summary
	defer func() { span.End("candidates", summary.Candidates, "succeeded", summary.Succeeded, "failed", summary.Failed) }()

	candidates, err := s.store.ListSnapshotCandidates(ctx, s.policy.max())
	if err != nil {
		return summary, err
	}
	candidates = append([]models.SnapshotCandidate(nil), candidates...)
	summary.Candidates = len(candidates)

	var errs []error
	limiter := rate.NewLimiter(rate.Every(s.cfg.Interval), 1)
	for _, candidate := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}

		status, err := s.process(ctx, logger, candidate)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return summary, ctx.Err()
		case errors.Is(err, repositories.ErrStoreClosed):
			return summary, err
		case skippable(err):
			logger.Info("snapshot candidate skipped", "asset_id", candidate.ID, "reason", err)
			summary.Skipped++
			continue
		default:
			logger.Error("snapshot candidate failed", "asset_id", candidate.ID, "error", err)
			errs = append(errs, fmt.Errorf("asset %s: %w", candidate.ID, err))
			continue
		}
		switch status {
		case models.SnapshotSucceeded:
			summary.Succeeded++
		case models.SnapshotFailed:
			summary.Failed++
		default:
			summary.Retrying++
		}
	}

	return summary, errors.Join(errs...)
}

// skippable reports whether err means the candidate is no longer this runner's to
// capture.
func skippable(err error) bool {
	return errors.Is(err, repositories.ErrSnapshotSettled) ||
		errors.Is(err, repositories.ErrSnapshotExhausted) ||
		errors.Is(err, repositories.ErrNotFound)
}

func (s *Scheduler) process(ctx context.Context, logger *slog.Logger, candidate models.SnapshotCandidate) (models.SnapshotStatus, error) {
	attempts, err := s.store.RecordSnapshotAttempt(ctx, candidate.ID, s.policy.max(), s.now().UTC())
	if err != nil {
		return models.SnapshotPending, err
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	ref, captureErr := s.capture(captureCtx, candidate.URL)
	cancel()

	if captureErr == nil && ref == "" {
		captureErr = errors.New("capture returned no image")
	}
	if captureErr != nil && ctx.Err() != nil {
		return models.SnapshotPending, ctx.Err()
	}

	result := Classify(captureErr)
	status := s.policy.NextStatus(result, attempts)

	if result == ResultSucceeded {
		if err := s.store.CompleteSnapshot(ctx, candidate.ID, ref); err != nil {
			return status, err
		}
		logger.Info("snapshot captured", "asset_id", candidate.ID, "attempts", attempts)
		return status, nil
	}

	message := s.policy.Message(result, attempts)
	if err := s.store.FailSnapshot(ctx, candidate.ID, status, message); err != nil {
		return status, err
	}
	logger.Warn("snapshot attempt failed",
		"asset_id", candidate.ID,
		"attempts", attempts,
		"status", status.String(),
		"error", captureErr,
	)
	return status, nil
}

func (s *Scheduler) capture(ctx context.Context, url string) (string, error) {
	if s.capturer == nil {
		return "", ErrCaptureUnavailable
	}
	return s.capturer.Capture(ctx, url)
}

// Activate schedules a batch after the debounce delay. Repeated activations within the
// delay collapse into one batch.
func (s *Scheduler) Activate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	batchCtx := context.WithoutCancel(ctx)
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		if _, err := s.RunPending(batchCtx); err != nil {
			s.logger.Error("snapshot batch failed", "error", err)
		}
	})
}

// Shutdown cancels any pending activation and waits for a running batch to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
