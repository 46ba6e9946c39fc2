// Package backend decides where the record store lives: a shared container, a private
// directory, or memory when nothing durable can be opened.
package backend

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Tier is a storage location class, in order of preference.
type Tier int

const (
	TierShared Tier = iota
	TierPrivate
	TierMemory
)

func (t Tier) String() string {
	switch t {
	case TierShared:
		return "shared"
	case TierPrivate:
		return "private"
	case TierMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier name in JSON responses.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// StoreFile is the record store file name inside a shared or private directory.
const StoreFile = "stash.db"

// Configuration is the only way to open the record store.
type Configuration struct {
	Tier     Tier   `json:"tier"`
	Path     string `json:"path,omitempty"`
	MemoryID string `json:"memoryId,omitempty"`
}

// Durable reports whether data survives a restart.
func (c Configuration) Durable() bool {
	return c.Tier != TierMemory
}

// DSN renders a modernc.org/sqlite data source name.
func (c Configuration) DSN() string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")

	if c.Tier == TierMemory {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return fmt.Sprintf("file:%s?%s", c.MemoryID, params.Encode())
	}
	return fmt.Sprintf("file:%s?%s", c.Path, params.Encode())
}

// Prepare creates the directory holding a file-backed store.
func (c Configuration) Prepare() error {
	if c.Tier == TierMemory {
		return nil
	}
	if c.Path == "" {
		return fmt.Errorf("%s tier has no path", c.Tier)
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// IssueKind classifies a storage resolution problem.
type IssueKind string

const (
	IssueContainerUnavailable IssueKind = "container-unavailable"
	IssuePrimaryStoreFailed   IssueKind = "primary-store-failed"
	IssueFallbackStoreFailed  IssueKind = "fallback-store-failed"
)

// Issue is the one failure class reported to users. CanContinueOffline tells the
// caller whether to offer continuing without the failed tier or only a retry.
type Issue struct {
	Kind               IssueKind `json:"kind"`
	Reason             string    `json:"reason"`
	CanContinueOffline bool      `json:"canContinueOffline"`
}

func (i *Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Reason)
}
