package handlers

import (
	"errors"
	"net/http"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/logging"
)

// ProviderHandler switches the AI vendor.
type ProviderHandler struct {
	Provider ProviderSwitcher
}

type providerRequest struct {
	Mode     string `json:"mode"`
	APIKey   string `json:"apiKey"`
	Endpoint string `json:"endpoint"`
}

type providerResponse struct {
	Mode ai.Mode `json:"mode"`
}

// Configure handles PUT /api/v1/ai/provider.
func (h ProviderHandler) Configure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req providerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.Provider.Configure(ctx, ai.Settings{
		Mode:     ai.Mode(req.Mode),
		APIKey:   req.APIKey,
		Endpoint: req.Endpoint,
	})
	switch {
	case errors.Is(err, ai.ErrProviderLocked):
		respondError(ctx, w, http.StatusForbidden, "custom providers are locked")
	case errors.Is(err, ai.ErrMissingAPIKey), errors.Is(err, ai.ErrUnknownMode):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case err != nil:
		logging.FromContext(ctx).Error("configure provider failed", "mode", req.Mode, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save provider settings")
	default:
		respondJSON(ctx, w, http.StatusOK, providerResponse{Mode: h.Provider.Mode()})
	}
}
