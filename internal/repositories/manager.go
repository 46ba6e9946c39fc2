package repositories

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/models"
)

// Manager holds the repository for the currently resolved storage configuration and
// swaps it when storage is reconfigured. Callers keep one Manager for the process.
type Manager struct {
	mu     sync.RWMutex
	repo   *AssetRepository
	logger *slog.Logger
}

// NewManager returns a manager with no open store; calls fail with ErrStoreClosed
// until Open succeeds.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Open opens cfg and makes it current, closing the previous repository.
func (m *Manager) Open(ctx context.Context, cfg backend.Configuration) error {
	repo, err := OpenAssetRepository(ctx, cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.repo
	m.repo = repo
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			m.logger.Warn("close previous record store", "error", err)
		}
	}
	m.logger.Info("record store opened", "tier", cfg.Tier.String(), "durable", cfg.Durable())
	return nil
}

// Configuration reports the open store's configuration.
func (m *Manager) Configuration() (backend.Configuration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.repo == nil {
		return backend.Configuration{}, false
	}
	return m.repo.Configuration(), true
}

// Close closes the current repository.
func (m *Manager) Close() error {
	m.mu.Lock()
	repo := m.repo
	m.repo = nil
	m.mu.Unlock()
	if repo == nil {
		return nil
	}
	return repo.Close()
}

func (m *Manager) current() (*AssetRepository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.repo == nil {
		return nil, ErrStoreClosed
	}
	return m.repo, nil
}

func (m *Manager) Create(ctx context.Context, asset models.SavedAsset) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.Create(ctx, asset)
}

func (m *Manager) Get(ctx context.Context, id string) (models.SavedAsset, error) {
	repo, err := m.current()
	if err != nil {
		return models.SavedAsset{}, err
	}
	return repo.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, query AssetQuery) ([]models.SavedAsset, error) {
	repo, err := m.current()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, query)
}

func (m *Manager) UpdateEnrichment(ctx context.Context, id, summary string, tags []string, source string) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.UpdateEnrichment(ctx, id, summary, tags, source)
}

func (m *Manager) SetReviewed(ctx context.Context, id string, reviewed bool) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.SetReviewed(ctx, id, reviewed)
}

func (m *Manager) ListSnapshotCandidates(ctx context.Context, maxAttempts int) ([]models.SnapshotCandidate, error) {
	repo, err := m.current()
	if err != nil {
		return nil, err
	}
	return repo.ListSnapshotCandidates(ctx, maxAttempts)
}

func (m *Manager) RecordSnapshotAttempt(ctx context.Context, id string, maxAttempts int, at time.Time) (int, error) {
	repo, err := m.current()
	if err != nil {
		return 0, err
	}
	return repo.RecordSnapshotAttempt(ctx, id, maxAttempts, at)
}

func (m *Manager) CompleteSnapshot(ctx context.Context, id, imageRef string) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.CompleteSnapshot(ctx, id, imageRef)
}

func (m *Manager) FailSnapshot(ctx context.Context, id string, status models.SnapshotStatus, message string) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.FailSnapshot(ctx, id, status, message)
}

func (m *Manager) GetSetting(ctx context.Context, key string) ([]byte, bool, error) {
	repo, err := m.current()
	if err != nil {
		return nil, false, err
	}
	return repo.GetSetting(ctx, key)
}

func (m *Manager) PutSetting(ctx context.Context, key string, value []byte) error {
	repo, err := m.current()
	if err != nil {
		return err
	}
	return repo.PutSetting(ctx, key, value)
}
