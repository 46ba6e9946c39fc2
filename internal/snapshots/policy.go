package snapshots

import (
	"context"
	"errors"
	"fmt"

	"github.com/stashlink/backend/internal/models"
)

// MaxAttempts bounds snapshot captures per asset, counting attempts interrupted by a crash.
const MaxAttempts = 3

// Result is the outcome of one capture attempt.
type Result int

const (
	ResultSucceeded Result = iota
	ResultTimedOut
	ResultFailed
)

// Classify maps a capture error to a Result.
func Classify(err error) Result {
	switch {
	case err == nil:
		return ResultSucceeded
	case errors.Is(err, context.DeadlineExceeded):
		return ResultTimedOut
	default:
		return ResultFailed
	}
}

// Policy is the retry state machine. The zero value uses MaxAttempts.
type Policy struct {
	MaxAttempts int
}

func (p Policy) max() int {
	if p.MaxAttempts <= 0 {
		return MaxAttempts
	}
	return p.MaxAttempts
}

// ShouldRetry reports whether an asset with the given attempt count is still eligible.
func (p Policy) ShouldRetry(attempts int) bool {
	return attempts < p.max()
}

// NextStatus applies the outcome of the attempt that brought the count to attempts.
func (p Policy) NextStatus(result Result, attempts int) models.SnapshotStatus {
	if result == ResultSucceeded {
		return models.SnapshotSucceeded
	}
	if p.ShouldRetry(attempts) {
		return models.SnapshotPending
	}
	return models.SnapshotFailed
}

// Message is the diagnostic stored alongside a failed attempt.
func (p Policy) Message(result Result, attempts int) string {
	final := !p.ShouldRetry(attempts)
	switch {
	case result == ResultSucceeded:
		return ""
	case result == ResultTimedOut && final:
		return fmt.Sprintf("Snapshot timed out %d times; retry stopped.", attempts)
	case result == ResultTimedOut:
		return "Snapshot timed out; will retry."
	case final:
		return fmt.Sprintf("Snapshot capture failed %d times; retry stopped.", attempts)
	default:
		return "Snapshot capture failed; will retry."
	}
}
