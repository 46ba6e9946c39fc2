package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/models"
	"github.com/stashlink/backend/internal/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type assetStoreStub struct {
	mu     sync.Mutex
	assets map[string]models.SavedAsset
	query  repositories.AssetQuery
	err    error
}

func newAssetStoreStub(assets ...models.SavedAsset) *assetStoreStub {
	s := &assetStoreStub{assets: make(map[string]models.SavedAsset)}
	for _, asset := range assets {
		s.assets[asset.ID] = asset
	}
	return s
}

func (s *assetStoreStub) List(_ context.Context, query repositories.AssetQuery) ([]models.SavedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.SavedAsset, 0, len(s.assets))
	for _, asset := range s.assets {
		out = append(out, asset)
	}
	return out, nil
}

func (s *assetStoreStub) Get(_ context.Context, id string) (models.SavedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[id]
	if !ok {
		return models.SavedAsset{}, repositories.ErrNotFound
	}
	return asset, nil
}

func (s *assetStoreStub) SetReviewed(_ context.Context, id string, reviewed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[id]
	if !ok {
		return repositories.ErrNotFound
	}
	asset.Reviewed = reviewed
	s.assets[id] = asset
	return nil
}

type ingestorStub struct {
	asset models.SavedAsset
	err   error
	share ingest.Share
}

func (i *ingestorStub) Ingest(_ context.Context, share ingest.Share) (models.SavedAsset, error) {
	i.share = share
	return i.asset, i.err
}

type assistantStub struct {
	answer     string
	err        error
	background string
}

func (a *assistantStub) Chat(_ context.Context, _ string, background string) (string, error) {
	a.background = background
	return a.answer, a.err
}

type publisherStub struct {
	actions []string
}

func (p *publisherStub) Publish(_ context.Context, action string, _ models.SavedAsset) error {
	p.actions = append(p.actions, action)
	return nil
}

type ledgerStub struct {
	account  models.CreditAccount
	unlockOK bool
	syncErr  error
	signedIn string
}

func (l *ledgerStub) Account() models.CreditAccount { return l.account }
func (l *ledgerStub) UnlockCost() float64 { return 10 }
func (l *ledgerStub) UnlockCustomProvider() bool {
	if l.unlockOK {
		l.account.ProviderUnlocked = true
		l.account.Remaining -= 10
	}
	return l.unlockOK
}
func (l *ledgerStub) SetPlan(plan models.Plan) { l.account.Plan = plan }
func (l *ledgerStub) SignIn(_ context.Context, accountID string) models.CreditAccount {
	l.signedIn = accountID
	l.account.AccountID = accountID
	return l.account
}
func (l *ledgerStub) SignOut() { l.account.AccountID = "local" }
func (l *ledgerStub) SyncError() error { return l.syncErr }

type providerStub struct {
	err      error
	settings ai.Settings
	mode     ai.Mode
}

func (p *providerStub) Configure(_ context.Context, settings ai.Settings) error {
	p.settings = settings
	if p.err != nil {
		return p.err
	}
	p.mode = settings.Mode
	return nil
}

func (p *providerStub) Mode() ai.Mode { return p.mode }

type resolverStub struct {
	cfg         backend.Configuration
	issue       *backend.Issue
	next        backend.Configuration
	nextIssue   *backend.Issue
	reconfigure int
}

func (r *resolverStub) Current() (backend.Configuration, *backend.Issue) { return r.cfg, r.issue }

func (r *resolverStub) Reconfigure(context.Context) (backend.Configuration, *backend.Issue) {
	r.reconfigure++
	r.cfg, r.issue = r.next, r.nextIssue
	return r.cfg, r.issue
}

func (r *resolverStub) Restore(cfg backend.Configuration, issue *backend.Issue) {
	r.cfg, r.issue = cfg, issue
}

func (r *resolverStub) ContinueOffline() bool {
	if r.issue == nil || !r.issue.CanContinueOffline {
		return false
	}
	r.issue = nil
	return true
}

type openerStub struct {
	opened []backend.Configuration
	err    error
}

func (o *openerStub) Open(_ context.Context, cfg backend.Configuration) error {
	if o.err != nil {
		return o.err
	}
	o.opened = append(o.opened, cfg)
	return nil
}

type activatorStub struct {
	calls int
}

func (a *activatorStub) Activate(context.Context) { a.calls++ }

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

var errBoom = errors.New("boom")
