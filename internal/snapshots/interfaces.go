package snapshots

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"time"

	"github.com/stashlink/backend/internal/models"
)

// Store is the part of the record repository the scheduler mutates.
type Store interface {
	ListSnapshotCandidates(ctx context.Context, maxAttempts int) ([]models.SnapshotCandidate, error)
	RecordSnapshotAttempt(ctx context.Context, id string, maxAttempts int, at time.Time) (int, error)
	CompleteSnapshot(ctx context.Context, id, imageRef string) error
	FailSnapshot(ctx context.Context, id string, status models.SnapshotStatus, message string) error
}

// Capturer renders a page and returns a stored image reference.
type Capturer interface {
	Capture(ctx context.Context, url string) (string, error)
}

// ImageSaver persists captured image bytes.
type ImageSaver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
