package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stashlink/backend/internal/backend"
)

func TestHealthHandlerHandle(t *testing.T) {
	handler := HealthHandler{}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}
}

func TestHealthHandlerReportsDegradedStorage(t *testing.T) {
	resolver := &resolverStub{
		cfg:   backend.Configuration{Tier: backend.TierPrivate, Path: "/tmp/stash.db"},
		issue: &backend.Issue{Kind: backend.IssueContainerUnavailable, CanContinueOffline: true},
	}
	router := NewRouter(Dependencies{Storage: resolver}, discardLogger())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" || resp.Tier != "private" {
		t.Fatalf("unexpected health %+v", resp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}
}
