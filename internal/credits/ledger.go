// Package credits meters AI usage with a plan-scoped daily credit balance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/stashlink/backend/internal/models"
)

// LocalAccountID identifies the default account used while signed out. It is never
// mirrored remotely.
const LocalAccountID = "local"

// ErrAccountNotFound is returned by a Mirror that has no record for an account.
var ErrAccountNotFound = errors.New("credit account not found")

// Mirror is the remote copy of credit accounts. Writes to it are best effort.
type Mirror interface {
	Upsert(ctx context.Context, account models.CreditAccount) error
	Fetch(ctx context.Context, accountID string) (models.CreditAccount, error)
}

// Config controls ledger defaults.
type Config struct {
	Plan        models.Plan
	UnlockCost  float64
	Location    *time.Location
	SyncTimeout time.Duration
}

// Ledger owns one credit account at a time. Every balance mutation is serialized
// through mu; remote mirroring happens on a background worker and never blocks or
// rolls back a local change.
type Ledger struct {
	mu      sync.Mutex
	account models.CreditAccount

	cfg    Config
	now    func() time.Time
	mirror Mirror
	logger *slog.Logger

	syncMu  sync.Mutex
	pending *models.CreditAccount
	syncErr error
	notify  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewLedger constructs a ledger holding the signed-out local account. A nil mirror
// disables remote sync.
func NewLedger(mirror Mirror, cfg Config, logger *slog.Logger) *Ledger {
	if cfg.Plan == "" {
		cfg.Plan = models.PlanFree
	}
	if cfg.UnlockCost <= 0 {
		cfg.UnlockCost = DefaultUnlockCost
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	l := &Ledger{
		cfg:    cfg,
		now:    time.Now,
		mirror: mirror,
		logger: logger,
		notify: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	l.account = l.defaultAccount(LocalAccountID)

	if mirror != nil {
		l.wg.Add(1)
		go l.syncWorker()
	}

	return l
}

// WithClock overrides the time source. It must be called before the ledger is shared.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.account.LastRefresh = l.today()
	return l
}

// RefreshIfDue resets the balance to the plan allotment when the last refresh happened
// on an earlier calendar day. It reports whether a refresh took place.
func (l *Ledger) RefreshIfDue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.touchLocked()
}

// CanAfford reports whether amount could be debited right now.
func (l *Ledger) CanAfford(amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touchLocked()
	return validAmount(amount) && amount <= l.account.Remaining
}

// Debit subtracts amount when the balance covers it. On failure the balance is left
// untouched.
func (l *Ledger) Debit(amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touchLocked()

	if !validAmount(amount) || amount > l.account.Remaining {
		return false
	}
	if amount == 0 {
		return true
	}

	l.account.Remaining = math.Max(0, l.account.Remaining-amount)
	l.scheduleSyncLocked()
	return true
}

// UnlockCustomProvider charges the unlock cost once and permanently enables custom AI
// providers. Calls after a successful unlock return true without charging.
func (l *Ledger) UnlockCustomProvider() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touchLocked()

	if l.account.ProviderUnlocked {
		return true
	}
	if l.account.Remaining < l.cfg.UnlockCost {
		return false
	}

	l.account.Remaining = math.Max(0, l.account.Remaining-l.cfg.UnlockCost)
	l.account.ProviderUnlocked = true
	l.scheduleSyncLocked()
	return true
}

// ProviderUnlocked reports whether custom AI providers are enabled.
func (l *Ledger) ProviderUnlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.ProviderUnlocked
}

// UnlockCost returns the one-time price of enabling custom providers.
func (l *Ledger) UnlockCost() float64 {
	return l.cfg.UnlockCost
}

// Account returns a snapshot of the current account, refreshed if a new day began.
func (l *Ledger) Account() models.CreditAccount {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touchLocked()
	return l.account
}

// SetPlan switches the account to plan and grants its full allotment immediately.
func (l *Ledger) SetPlan(plan models.Plan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.account.Plan = plan
	l.account.Remaining = DailyAllotment(plan)
	l.account.LastRefresh = l.today()
	l.scheduleSyncLocked()
}

// SignIn switches the ledger to accountID, loading its record from the mirror. When
// the mirror is unavailable the account starts from local defaults and the failure is
// kept as a sync diagnostic.
func (l *Ledger) SignIn(ctx context.Context, accountID string) models.CreditAccount {
	if accountID == "" {
		accountID = LocalAccountID
	}

	remote, found, err := l.fetchRemote(ctx, accountID)
	if err != nil {
		l.recordSyncError(fmt.Errorf("load account %s: %w", accountID, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if found {
		l.account = l.sanitize(remote, accountID)
	} else {
		l.account = l.defaultAccount(accountID)
	}
	refreshed := l.refreshLocked()
	// An unreachable mirror must not be overwritten with local defaults.
	if err == nil && (refreshed || !found) {
		l.scheduleSyncLocked()
	}

	return l.account
}

// SignOut resets the in-memory account to the local defaults. The remote record is
// left as is.
func (l *Ledger) SignOut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account = l.defaultAccount(LocalAccountID)
}

// SyncError returns the most recent mirror failure, or nil after a successful sync.
func (l *Ledger) SyncError() error {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()
	return l.syncErr
}

// Close stops the sync worker after flushing the latest pending snapshot.
func (l *Ledger) Close(ctx context.Context) error {
	l.once.Do(l.cancel)

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (l *Ledger) fetchRemote(ctx context.Context, accountID string) (models.CreditAccount, bool, error) {
	if l.mirror == nil || accountID == LocalAccountID {
		return models.CreditAccount{}, false, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.SyncTimeout)
	defer cancel()

	account, err := l.mirror.Fetch(fetchCtx, accountID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return models.CreditAccount{}, false, nil
	case err != nil:
		return models.CreditAccount{}, false, err
	default:
		return account, true, nil
	}
}

func (l *Ledger) sanitize(account models.CreditAccount, accountID string) models.CreditAccount {
	account.AccountID = accountID
	if _, ok := dailyAllotments[account.Plan]; !ok {
		account.Plan = l.cfg.Plan
	}
	if !validAmount(account.Remaining) {
		account.Remaining = 0
	}
	return account
}

func (l *Ledger) defaultAccount(accountID string) models.CreditAccount {
	return models.CreditAccount{
		AccountID:   accountID,
		Plan:        l.cfg.Plan,
		Remaining:   DailyAllotment(l.cfg.Plan),
		LastRefresh: l.today(),
	}
}

// touchLocked applies a due daily refresh and mirrors it. Every balance read or write
// goes through it first.
func (l *Ledger) touchLocked() bool {
	if !l.refreshLocked() {
		return false
	}
	l.scheduleSyncLocked()
	return true
}

func (l *Ledger) refreshLocked() bool {
	today := l.today()
	if !l.account.LastRefresh.IsZero() && sameDay(l.account.LastRefresh, today, l.cfg.Location) {
		return false
	}
	l.account.Remaining = DailyAllotment(l.account.Plan)
	l.account.LastRefresh = today
	return true
}

func (l *Ledger) today() time.Time {
	y, m, d := l.now().In(l.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.cfg.Location)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}

func (l *Ledger) scheduleSyncLocked() {
	if l.mirror == nil || l.account.AccountID == LocalAccountID {
		return
	}

	snapshot := l.account
	l.syncMu.Lock()
	l.pending = &snapshot
	l.syncMu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *Ledger) syncWorker() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			l.flush()
			return
		case <-l.notify:
			l.flush()
		}
	}
}

// flush upserts only the latest pending snapshot; intermediate states are skipped.
func (l *Ledger) flush() {
	l.syncMu.Lock()
	account := l.pending
	l.pending = nil
	l.syncMu.Unlock()

	if account == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.SyncTimeout)
	defer cancel()

	if err := l.mirror.Upsert(ctx, *account); err != nil {
		l.recordSyncError(fmt.Errorf("sync account %s: %w", account.AccountID, err))
		return
	}

	l.syncMu.Lock()
	l.syncErr = nil
	l.syncMu.Unlock()
}

func (l *Ledger) recordSyncError(err error) {
	l.logger.Warn("credit mirror sync failed", "error", err)

	l.syncMu.Lock()
	l.syncErr = err
	l.syncMu.Unlock()
}
