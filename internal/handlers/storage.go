package handlers

import (
	"net/http"

	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/logging"
)

// StorageHandler reports the resolved record store and lets the user act on issues.
type StorageHandler struct {
	Resolver StorageResolver
	Store    StoreOpener
}

type storageResponse struct {
	Tier    backend.Tier   `json:"tier"`
	Durable bool           `json:"durable"`
	Path    string         `json:"path,omitempty"`
	Issue   *backend.Issue `json:"issue,omitempty"`
}

type storageUnavailableResponse struct {
	Error string         `json:"error"`
	Issue *backend.Issue `json:"issue"`
}

func newStorageResponse(cfg backend.Configuration, issue *backend.Issue) storageResponse {
	return storageResponse{Tier: cfg.Tier, Durable: cfg.Durable(), Path: cfg.Path, Issue: issue}
}

// Get handles GET /api/v1/storage.
func (h StorageHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, issue := h.Resolver.Current()
	respondJSON(r.Context(), w, http.StatusOK, newStorageResponse(cfg, issue))
}

// Retry handles POST /api/v1/storage/retry.
func (h StorageHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	previous, previousIssue := h.Resolver.Current()
	cfg, issue := h.Resolver.Reconfigure(ctx)
	if cfg != previous && h.Store != nil {
		if err := h.Store.Open(ctx, cfg); err != nil {
			// The previous store is still the one serving records.
			h.Resolver.Restore(previous, previousIssue)
			logging.FromContext(ctx).Error("open reconfigured store failed", "tier", cfg.Tier.String(), "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to open storage")
			return
		}
	}
	respondJSON(ctx, w, http.StatusOK, newStorageResponse(cfg, issue))
}

// ContinueOffline handles POST /api/v1/storage/offline.
func (h StorageHandler) ContinueOffline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.Resolver.ContinueOffline() {
		_, issue := h.Resolver.Current()
		if issue == nil {
			respondError(ctx, w, http.StatusConflict, "storage has no outstanding issue")
			return
		}
		respondJSON(ctx, w, http.StatusConflict, storageUnavailableResponse{Error: "this issue requires a retry", Issue: issue})
		return
	}
	cfg, issue := h.Resolver.Current()
	respondJSON(ctx, w, http.StatusOK, newStorageResponse(cfg, issue))
}

// RequireStorage rejects requests while a storage issue awaits the user's decision.
func RequireStorage(resolver StorageResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver != nil {
				if _, issue := resolver.Current(); issue != nil {
					respondJSON(r.Context(), w, http.StatusServiceUnavailable, storageUnavailableResponse{
						Error: "storage unavailable",
						Issue: issue,
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
