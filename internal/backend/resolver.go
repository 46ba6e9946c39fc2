package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stashlink/backend/internal/db"
	"github.com/stashlink/backend/internal/logging"
)

// ErrContainerUnavailable is returned by a Locator that cannot find the shared container.
var ErrContainerUnavailable = errors.New("shared container unavailable")

// Locator finds the shared storage directory.
type Locator interface {
	SharedDir(ctx context.Context) (string, error)
}

// Validator proves a configuration can actually be opened.
type Validator interface {
	Validate(ctx context.Context, cfg Configuration) error
}

// DirLocator resolves a shared container that must already exist; it is never created.
type DirLocator struct {
	Dir string
}

func (l DirLocator) SharedDir(context.Context) (string, error) {
	dir := strings.TrimSpace(l.Dir)
	if dir == "" {
		return "", fmt.Errorf("%w: no shared directory configured", ErrContainerUnavailable)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContainerUnavailable, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrContainerUnavailable, dir)
	}
	return dir, nil
}

// SQLiteValidator opens the store, applies migrations and closes it again.
type SQLiteValidator struct{}

func (SQLiteValidator) Validate(ctx context.Context, cfg Configuration) error {
	if err := cfg.Prepare(); err != nil {
		return err
	}
	conn, err := db.OpenSQLite(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	return conn.Close()
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, cfg Configuration) error

func (f ValidatorFunc) Validate(ctx context.Context, cfg Configuration) error { return f(ctx, cfg) }

// Resolver walks the shared, private and memory tiers and remembers the outcome.
type Resolver struct {
	locator    Locator
	validator  Validator
	privateDir string
	memoryID   string
	logger     *slog.Logger

	mu      sync.RWMutex
	current Configuration
	issue   *Issue
}

// NewResolver constructs a resolver. privateDir is always writable by the process.
func NewResolver(locator Locator, validator Validator, privateDir string, logger *slog.Logger) *Resolver {
	if validator == nil {
		validator = SQLiteValidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		locator:    locator,
		validator:  validator,
		privateDir: privateDir,
		memoryID:   "stash-" + uuid.NewString(),
		logger:     logger,
	}
}

// Bootstrap resolves the store. It always returns a configuration; the issue, when
// present, describes the first tier that could not be used.
func (r *Resolver) Bootstrap(ctx context.Context) (Configuration, *Issue) {
	ctx, span := logging.StartSpan(logging.WithLogger(ctx, r.logger), "storage.resolve")
	cfg, issue := r.resolve(ctx, span.Logger())
	span.End("tier", cfg.Tier.String(), "issue", issueKind(issue))

	r.mu.Lock()
	r.current, r.issue = cfg, issue
	r.mu.Unlock()

	return cfg, issue
}

// Reconfigure re-runs Bootstrap, typically after the user fixed the underlying cause.
func (r *Resolver) Reconfigure(ctx context.Context) (Configuration, *Issue) {
	return r.Bootstrap(ctx)
}

// ContinueOffline clears a recoverable issue without fixing its cause. It reports
// false when there is no issue or the issue does not allow it.
func (r *Resolver) ContinueOffline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.issue == nil || !r.issue.CanContinueOffline {
		return false
	}
	r.logger.Warn("continuing with degraded storage", "tier", r.current.Tier.String(), "issue", string(r.issue.Kind))
	r.issue = nil
	return true
}

// Restore puts back a configuration and issue returned by an earlier Current call,
// for when the caller could not open the store a later resolution picked.
func (r *Resolver) Restore(cfg Configuration, issue *Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current, r.issue = cfg, issue
}

// Current returns the last resolved configuration and any outstanding issue.
func (r *Resolver) Current() (Configuration, *Issue) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.issue
}

func (r *Resolver) resolve(ctx context.Context, logger *slog.Logger) (Configuration, *Issue) {
	var issue *Issue

	if dir, err := r.sharedDir(ctx); err != nil {
		logger.Warn("shared container unavailable", "error", err)
		issue = &Issue{
			Kind:               IssueContainerUnavailable,
			Reason:             "The shared storage container could not be located; saves from other apps will not be visible.",
			CanContinueOffline: true,
		}
	} else {
		shared := Configuration{Tier: TierShared, Path: filepath.Join(dir, StoreFile)}
		err := r.validator.Validate(ctx, shared)
		if err == nil {
			return shared, nil
		}
		logger.Error("shared store failed validation", "path", shared.Path, "error", err)
		issue = primaryFailed(fmt.Sprintf("The shared store could not be opened: %v.", err))
	}

	private := Configuration{Tier: TierPrivate, Path: filepath.Join(r.privateDir, StoreFile)}
	err := r.validator.Validate(ctx, private)
	if err == nil {
		return private, issue
	}
	logger.Error("private store failed validation", "path", private.Path, "error", err)
	issue = primaryFailed(fmt.Sprintf("The local store could not be opened: %v. Saved links will only be kept until the app restarts.", err))

	memory := Configuration{Tier: TierMemory, MemoryID: r.memoryID}
	if err := r.validator.Validate(ctx, memory); err != nil {
		logger.Error("in-memory store failed validation", "error", err)
		return memory, &Issue{
			Kind:               IssueFallbackStoreFailed,
			Reason:             fmt.Sprintf("No storage is available, not even a temporary one: %v", err),
			CanContinueOffline: false,
		}
	}

	return memory, issue
}

func (r *Resolver) sharedDir(ctx context.Context) (string, error) {
	if r.locator == nil {
		return "", ErrContainerUnavailable
	}
	return r.locator.SharedDir(ctx)
}

func primaryFailed(reason string) *Issue {
	return &Issue{
		Kind:               IssuePrimaryStoreFailed,
		Reason:             reason,
		CanContinueOffline: true,
	}
}

func issueKind(issue *Issue) string {
	if issue == nil {
		return ""
	}
	return string(issue.Kind)
}
