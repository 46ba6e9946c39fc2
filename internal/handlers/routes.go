package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stashlink/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Assets    AssetStore
	Ingest    Ingestor
	Assistant Assistant
	Events    EventPublisher
	Ledger    CreditLedger
	Provider  ProviderSwitcher
	Storage   StorageResolver
	Store     StoreOpener
	Snapshots SnapshotActivator
	Limiter   RateLimiter
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	health := HealthHandler{Storage: deps.Storage}
	assets := AssetHandler{
		Assets:    deps.Assets,
		Ingest:    deps.Ingest,
		Assistant: deps.Assistant,
		Events:    deps.Events,
		Snapshots: deps.Snapshots,
		Limiter:   deps.Limiter,
	}
	credits := CreditHandler{Ledger: deps.Ledger}
	provider := ProviderHandler{Provider: deps.Provider}
	storage := StorageHandler{Resolver: deps.Storage, Store: deps.Store}

	r := chi.NewRouter()
	r.Use(chimw.CleanPath)
	r.Use(chimw.GetHead)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireStorage(deps.Storage))

			r.Post("/assets", assets.Create)
			r.Get("/assets", assets.List)
			r.Get("/assets/{id}", assets.Get)
			r.Patch("/assets/{id}/reviewed", assets.Reviewed)
			r.Post("/assets/{id}/chat", assets.Chat)
			r.Put("/ai/provider", provider.Configure)
			r.Post("/activate", activate(deps.Snapshots))
		})

		r.Get("/credits", credits.Get)
		r.Post("/credits/unlock", credits.Unlock)
		r.Put("/credits/plan", credits.SetPlan)
		r.Post("/session", credits.SignIn)
		r.Delete("/session", credits.SignOut)

		r.Get("/storage", storage.Get)
		r.Post("/storage/retry", storage.Retry)
		r.Post("/storage/offline", storage.ContinueOffline)
	})

	return r
}

// activate handles POST /api/v1/activate, the app coming to the foreground.
func activate(snapshots SnapshotActivator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snapshots != nil {
			snapshots.Activate(r.Context())
		}
		respondJSON(r.Context(), w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	}
}
