package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stashlink/backend/internal/enrichment"
	"github.com/stashlink/backend/internal/events"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/models"
)

func sampleAsset() models.SavedAsset {
	return models.SavedAsset{
		ID:         "a-1",
		URL:        "https://github.com/golang/go",
		Title:      "The Go programming language",
		Summary:    "Open source project.",
		Tags:       []string{"Code"},
		SourceApp:  "GitHub",
		CoverEmoji: "💻",
		CoverColor: "bg-green-100",
	}
}

func TestAssetCreate(t *testing.T) {
	created := sampleAsset()
	ingestor := &ingestorStub{asset: created}
	snapshots := &activatorStub{}
	router := NewRouter(Dependencies{Ingest: ingestor, Snapshots: snapshots}, discardLogger())

	rec := serve(t, router, http.MethodPost, "/api/v1/assets", `{"url":"https://github.com/golang/go","image":"anBlZw=="}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if ingestor.share.URL != "https://github.com/golang/go" || string(ingestor.share.Image) != "jpeg" {
		t.Fatalf("unexpected share %+v", ingestor.share)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "a-1" || resp["snapshotStatus"] != "pending" {
		t.Fatalf("unexpected body %v", resp)
	}
	if snapshots.calls != 1 {
		t.Fatalf("expected snapshot pass for pending asset, got %d", snapshots.calls)
	}
}

func TestAssetCreateErrors(t *testing.T) {
	cases := []struct {
		name   string
		deps   Dependencies
		body   string
		status int
	}{
		{"invalid json", Dependencies{Ingest: &ingestorStub{}}, `{`, http.StatusBadRequest},
		{"unknown field", Dependencies{Ingest: &ingestorStub{}}, `{"link":"x"}`, http.StatusBadRequest},
		{"invalid url", Dependencies{Ingest: &ingestorStub{err: fmt.Errorf("%w: empty", ingest.ErrInvalidURL)}}, `{"url":""}`, http.StatusBadRequest},
		{"store failure", Dependencies{Ingest: &ingestorStub{err: errBoom}}, `{"url":"https://x.com"}`, http.StatusInternalServerError},
		{"rate limited", Dependencies{Ingest: &ingestorStub{}, Limiter: denyLimiter{}}, `{"url":"https://x.com"}`, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, NewRouter(tc.deps, discardLogger()), http.MethodPost, "/api/v1/assets", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAssetListAndGet(t *testing.T) {
	store := newAssetStoreStub(sampleAsset())
	router := NewRouter(Dependencies{Assets: store}, discardLogger())

	rec := serve(t, router, http.MethodGet, "/api/v1/assets?tag=Code&q=go&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if store.query.Tag != "Code" || store.query.Search != "go" || store.query.Limit != 10 {
		t.Fatalf("unexpected query %+v", store.query)
	}
	var list listResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list.Assets) != 1 || list.Assets[0].ID != "a-1" {
		t.Fatalf("unexpected list %+v", list)
	}

	if rec := serve(t, router, http.MethodGet, "/api/v1/assets?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodGet, "/api/v1/assets/a-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodGet, "/api/v1/assets/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestAssetReviewed(t *testing.T) {
	store := newAssetStoreStub(sampleAsset())
	publisher := &publisherStub{}
	router := NewRouter(Dependencies{Assets: store, Events: publisher}, discardLogger())

	rec := serve(t, router, http.MethodPatch, "/api/v1/assets/a-1/reviewed", `{"reviewed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.assets["a-1"].Reviewed {
		t.Fatalf("expected asset to be reviewed")
	}
	if len(publisher.actions) != 1 || publisher.actions[0] != events.ActionReviewed {
		t.Fatalf("unexpected events %v", publisher.actions)
	}

	if rec := serve(t, router, http.MethodPatch, "/api/v1/assets/a-1/reviewed", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without flag, got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodPatch, "/api/v1/assets/missing/reviewed", `{"reviewed":false}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestAssetChat(t *testing.T) {
	store := newAssetStoreStub(sampleAsset())

	assistant := &assistantStub{answer: "It is a compiler."}
	router := NewRouter(Dependencies{Assets: store, Assistant: assistant}, discardLogger())
	rec := serve(t, router, http.MethodPost, "/api/v1/assets/a-1/chat", `{"query":"what is it?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "It is a compiler." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if !strings.Contains(assistant.background, "The Go programming language") || !strings.Contains(assistant.background, "Tags: Code") {
		t.Fatalf("unexpected background %q", assistant.background)
	}

	cases := []struct {
		err    error
		status int
	}{
		{enrichment.ErrInsufficientCredits, http.StatusPaymentRequired},
		{enrichment.ErrVendorUnavailable, http.StatusServiceUnavailable},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := NewRouter(Dependencies{Assets: store, Assistant: &assistantStub{err: tc.err}}, discardLogger())
		if rec := serve(t, router, http.MethodPost, "/api/v1/assets/a-1/chat", `{"query":"q"}`); rec.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rec.Code)
		}
	}

	if rec := serve(t, router, http.MethodPost, "/api/v1/assets/a-1/chat", `{"query":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", rec.Code)
	}
}
