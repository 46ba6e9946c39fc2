package handlers

import (
	"net/http"
	"strings"

	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/models"
)

// CreditHandler exposes the credit ledger and the signed-in identity.
type CreditHandler struct {
	Ledger CreditLedger
}

type creditsResponse struct {
	Account    models.CreditAccount `json:"account"`
	UnlockCost float64              `json:"unlockCost"`
	SyncError  string               `json:"syncError,omitempty"`
}

type planRequest struct {
	Plan string `json:"plan"`
}

type sessionRequest struct {
	AccountID string `json:"accountId"`
}

// Get handles GET /api/v1/credits.
func (h CreditHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, h.snapshot())
}

// Unlock handles POST /api/v1/credits/unlock.
func (h CreditHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.Ledger.UnlockCustomProvider() {
		respondError(ctx, w, http.StatusPaymentRequired, "not enough credits to unlock custom providers")
		return
	}
	respondJSON(ctx, w, http.StatusOK, h.snapshot())
}

// SetPlan handles PUT /api/v1/credits/plan.
func (h CreditHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := credits.ParsePlan(req.Plan)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	h.Ledger.SetPlan(plan)
	respondJSON(ctx, w, http.StatusOK, h.snapshot())
}

// SignIn handles POST /api/v1/session.
func (h CreditHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.AccountID) == "" {
		respondError(ctx, w, http.StatusBadRequest, "accountId is required")
		return
	}

	h.Ledger.SignIn(ctx, strings.TrimSpace(req.AccountID))
	respondJSON(ctx, w, http.StatusOK, h.snapshot())
}

// SignOut handles DELETE /api/v1/session.
func (h CreditHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.Ledger.SignOut()
	respondJSON(r.Context(), w, http.StatusOK, h.snapshot())
}

func (h CreditHandler) snapshot() creditsResponse {
	resp := creditsResponse{
		Account:    h.Ledger.Account(),
		UnlockCost: h.Ledger.UnlockCost(),
	}
	if err := h.Ledger.SyncError(); err != nil {
		resp.SyncError = err.Error()
	}
	return resp
}
