package handlers

import (
	"context"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/models"
	"github.com/stashlink/backend/internal/repositories"
)

// AssetStore captures the record operations used by the asset handlers.
type AssetStore interface {
	List(ctx context.Context, query repositories.AssetQuery) ([]models.SavedAsset, error)
	Get(ctx context.Context, id string) (models.SavedAsset, error)
	SetReviewed(ctx context.Context, id string, reviewed bool) error
}

// Ingestor turns a share into a stored asset.
type Ingestor interface {
	Ingest(ctx context.Context, share ingest.Share) (models.SavedAsset, error)
}

// Assistant answers questions about a saved link.
type Assistant interface {
	Chat(ctx context.Context, query, background string) (string, error)
}

// EventPublisher announces asset changes.
type EventPublisher interface {
	Publish(ctx context.Context, action string, asset models.SavedAsset) error
}

// CreditLedger is the account surface exposed over HTTP.
type CreditLedger interface {
	Account() models.CreditAccount
	UnlockCost() float64
	UnlockCustomProvider() bool
	SetPlan(plan models.Plan)
	SignIn(ctx context.Context, accountID string) models.CreditAccount
	SignOut()
	SyncError() error
}

// ProviderSwitcher changes the AI vendor in force.
type ProviderSwitcher interface {
	Configure(ctx context.Context, settings ai.Settings) error
	Mode() ai.Mode
}

// StorageResolver reports and re-runs storage resolution.
type StorageResolver interface {
	Current() (backend.Configuration, *backend.Issue)
	Reconfigure(ctx context.Context) (backend.Configuration, *backend.Issue)
	ContinueOffline() bool
	Restore(cfg backend.Configuration, issue *backend.Issue)
}

// StoreOpener switches the record store to a resolved configuration.
type StoreOpener interface {
	Open(ctx context.Context, cfg backend.Configuration) error
}

// SnapshotActivator schedules a debounced snapshot pass.
type SnapshotActivator interface {
	Activate(ctx context.Context)
}

// RateLimiter is the minimal interface required to guard expensive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}
