package models

import "time"

// MaxTags bounds how many classification tags a saved link carries.
const MaxTags = 3

// SnapshotStatus tracks background thumbnail capture for a saved link.
type SnapshotStatus int

const (
	SnapshotPending SnapshotStatus = iota
	SnapshotSucceeded
	SnapshotFailed
)

func (s SnapshotStatus) String() string {
	switch s {
	case SnapshotPending:
		return "pending"
	case SnapshotSucceeded:
		return "succeeded"
	case SnapshotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s SnapshotStatus) Terminal() bool {
	return s == SnapshotSucceeded || s == SnapshotFailed
}

// SavedAsset is one saved link together with its enrichment and snapshot bookkeeping.
type SavedAsset struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	ImageRef   string    `json:"imageRef,omitempty"`
	SourceApp  string    `json:"sourceApp"`
	CreatedAt  time.Time `json:"createdAt"`
	Reviewed   bool      `json:"reviewed"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags"`
	CoverEmoji string    `json:"coverEmoji"`
	CoverColor string    `json:"coverColor"`
	Snapshot   Snapshot  `json:"snapshot"`

	// EnrichmentSource records whether Summary and Tags came from a vendor or a fallback rule.
	EnrichmentSource string `json:"enrichmentSource,omitempty"`
}

// Snapshot holds the retry state for thumbnail capture.
type Snapshot struct {
	Status        SnapshotStatus `json:"-"`
	Attempts      int            `json:"attempts"`
	LastError     string         `json:"lastError,omitempty"`
	LastAttemptAt *time.Time     `json:"lastAttemptAt,omitempty"`
}

// SnapshotCandidate is the point-in-time identity of an asset awaiting a thumbnail.
type SnapshotCandidate struct {
	ID  string
	URL string
}

// Plan is a subscription tier that determines the daily credit allotment.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
	PlanPro  Plan = "pro"
)

// CreditAccount is the metered AI budget of one identity.
type CreditAccount struct {
	AccountID        string    `json:"accountId"`
	Plan             Plan      `json:"plan"`
	Remaining        float64   `json:"remaining"`
	LastRefresh      time.Time `json:"lastRefresh"`
	ProviderUnlocked bool      `json:"providerUnlocked"`
}
