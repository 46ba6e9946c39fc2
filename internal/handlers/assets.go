package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stashlink/backend/internal/enrichment"
	"github.com/stashlink/backend/internal/events"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/logging"
	"github.com/stashlink/backend/internal/models"
	"github.com/stashlink/backend/internal/repositories"
)

// AssetHandler serves saved links.
type AssetHandler struct {
	Assets    AssetStore
	Ingest    Ingestor
	Assistant Assistant
	Events    EventPublisher
	Snapshots SnapshotActivator
	Limiter   RateLimiter
}

type assetResponse struct {
	models.SavedAsset
	SnapshotStatus string `json:"snapshotStatus"`
}

func toAssetResponse(asset models.SavedAsset) assetResponse {
	if asset.Tags == nil {
		asset.Tags = []string{}
	}
	return assetResponse{SavedAsset: asset, SnapshotStatus: asset.Snapshot.Status.String()}
}

type listResponse struct {
	Assets []assetResponse `json:"assets"`
}

type reviewedRequest struct {
	Reviewed *bool `json:"reviewed"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// Create handles POST /api/v1/assets.
func (h AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "ingest") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var share ingest.Share
	if err := decodeJSON(w, r, &share); err != nil {
		logger.Warn("invalid share payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.Ingest.Ingest(ctx, share)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidURL) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("ingest share failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save link")
		return
	}

	if asset.Snapshot.Status == models.SnapshotPending && h.Snapshots != nil {
		h.Snapshots.Activate(ctx)
	}

	respondJSON(ctx, w, http.StatusCreated, toAssetResponse(asset))
}

// List handles GET /api/v1/assets.
func (h AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := repositories.AssetQuery{
		Tag:    r.URL.Query().Get("tag"),
		Search: r.URL.Query().Get("q"),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(ctx, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}

	assets, err := h.Assets.List(ctx, query)
	if err != nil {
		logging.FromContext(ctx).Error("list assets failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list links")
		return
	}

	resp := listResponse{Assets: make([]assetResponse, 0, len(assets))}
	for _, asset := range assets {
		resp.Assets = append(resp.Assets, toAssetResponse(asset))
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /api/v1/assets/{id}.
func (h AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asset, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(ctx, w, http.StatusOK, toAssetResponse(asset))
}

// Reviewed handles PATCH /api/v1/assets/{id}/reviewed.
func (h AssetHandler) Reviewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	id := chi.URLParam(r, "id")

	var req reviewedRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Reviewed == nil {
		respondError(ctx, w, http.StatusBadRequest, "reviewed is required")
		return
	}

	if err := h.Assets.SetReviewed(ctx, id, *req.Reviewed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "link not found")
			return
		}
		logger.Error("update reviewed failed", "asset_id", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update link")
		return
	}

	asset, ok := h.load(w, r)
	if !ok {
		return
	}
	if h.Events != nil {
		if err := h.Events.Publish(ctx, events.ActionReviewed, asset); err != nil {
			logger.Warn("publish asset event", "asset_id", id, "error", err)
		}
	}
	respondJSON(ctx, w, http.StatusOK, toAssetResponse(asset))
}

// Chat handles POST /api/v1/assets/{id}/chat.
func (h AssetHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "chat") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		respondError(ctx, w, http.StatusBadRequest, "query is required")
		return
	}

	asset, ok := h.load(w, r)
	if !ok {
		return
	}

	answer, err := h.Assistant.Chat(ctx, strings.TrimSpace(req.Query), chatBackground(asset))
	switch {
	case errors.Is(err, enrichment.ErrInsufficientCredits):
		respondError(ctx, w, http.StatusPaymentRequired, "not enough credits")
	case errors.Is(err, enrichment.ErrVendorUnavailable):
		logging.FromContext(ctx).Warn("chat vendor unavailable", "asset_id", asset.ID, "error", err)
		respondError(ctx, w, http.StatusServiceUnavailable, "assistant unavailable")
	case err != nil:
		logging.FromContext(ctx).Error("chat failed", "asset_id", asset.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "chat failed")
	default:
		respondJSON(ctx, w, http.StatusOK, chatResponse{Answer: answer})
	}
}

func (h AssetHandler) load(w http.ResponseWriter, r *http.Request) (models.SavedAsset, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	asset, err := h.Assets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "link not found")
			return models.SavedAsset{}, false
		}
		logging.FromContext(ctx).Error("load asset failed", "asset_id", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load link")
		return models.SavedAsset{}, false
	}
	return asset, true
}

func chatBackground(asset models.SavedAsset) string {
	var b strings.Builder
	b.WriteString("Title: " + asset.Title + "\n")
	b.WriteString("URL: " + asset.URL + "\n")
	if asset.Summary != "" {
		b.WriteString("Summary: " + asset.Summary + "\n")
	}
	if len(asset.Tags) > 0 {
		b.WriteString("Tags: " + strings.Join(asset.Tags, ", ") + "\n")
	}
	return b.String()
}
