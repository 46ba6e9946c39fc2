package handlers

import "net/http"

// HealthHandler responds with service health information.
type HealthHandler struct {
	Storage StorageResolver
}

type healthResponse struct {
	Status string `json:"status"`
	Tier   string `json:"tier,omitempty"`
}

// Handle implements GET /healthz. A degraded store is still healthy; the tier is
// reported so operators can see it.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.Storage != nil {
		cfg, issue := h.Storage.Current()
		resp.Tier = cfg.Tier.String()
		if issue != nil {
			resp.Status = "degraded"
		}
	}
	respondJSON(r.Context(), w, http.StatusOK, resp)
}
