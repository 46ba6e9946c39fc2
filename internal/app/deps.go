package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/config"
	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/db"
	"github.com/stashlink/backend/internal/enrichment"
	"github.com/stashlink/backend/internal/events"
	"github.com/stashlink/backend/internal/handlers"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/metadata"
	"github.com/stashlink/backend/internal/middleware"
	"github.com/stashlink/backend/internal/repositories"
	"github.com/stashlink/backend/internal/snapshots"
	"github.com/stashlink/backend/internal/storage"
)

// components holds every long-lived collaborator of a running process.
type components struct {
	Resolver    *backend.Resolver
	Store       *repositories.Manager
	Ledger      *credits.Ledger
	Provider    *ai.Router
	Coordinator *enrichment.Coordinator
	Pipeline    *ingest.Pipeline
	Scheduler   *snapshots.Scheduler
	Events      events.Publisher
	Limiter     *middleware.Limiter
}

// Handlers exposes the components to the HTTP layer.
func (c *components) Handlers() handlers.Dependencies {
	return handlers.Dependencies{
		Assets:    c.Store,
		Ingest:    c.Pipeline,
		Assistant: c.Coordinator,
		Events:    c.Events,
		Ledger:    c.Ledger,
		Provider:  c.Provider,
		Storage:   c.Resolver,
		Store:     c.Store,
		Snapshots: c.Scheduler,
		Limiter:   c.Limiter,
	}
}

type cleanupFunc func(ctx context.Context) error

// openMirror connects the remote credit mirror selected by the ledger config. A nil
// mirror keeps the ledger local.
func openMirror(ctx context.Context, cfg config.Config, logger *slog.Logger) (credits.Mirror, cleanupFunc, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Ledger.Mirror {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewPostgresLedgerMirror(pool), func(context.Context) error {
			pool.Close()
			return nil
		}, nil
	case "redis":
		client, err := repositories.ConnectRedis(ctx, repositories.RedisOptions{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			ConnectTimeout: cfg.Redis.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewRedisLedgerMirror(client), func(context.Context) error {
			return client.Close()
		}, nil
	default:
		return nil, noop, nil
	}
}

// buildDependencies wires together concrete implementations used by the commands and
// the HTTP handlers. The returned cleanup releases them in reverse order.
func buildDependencies(ctx context.Context, cfg config.Config, mirror credits.Mirror, logger *slog.Logger) (*components, cleanupFunc, error) {
	var closers []cleanupFunc
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*components, cleanupFunc, error) {
		_ = cleanup(context.Background())
		return nil, nil, err
	}

	resolver := backend.NewResolver(backend.DirLocator{Dir: cfg.Storage.SharedDir}, backend.SQLiteValidator{}, cfg.Storage.PrivateDir, logger)
	resolved, issue := resolver.Bootstrap(ctx)
	if issue != nil {
		logger.Warn("record store degraded", "tier", resolved.Tier.String(), "issue", string(issue.Kind), "reason", issue.Reason)
	}

	store := repositories.NewManager(logger)
	if err := store.Open(ctx, resolved); err != nil {
		return fail(fmt.Errorf("open record store: %w", err))
	}
	closers = append(closers, func(context.Context) error { return store.Close() })

	plan, err := credits.ParsePlan(cfg.Ledger.Plan)
	if err != nil {
		return fail(err)
	}
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return fail(err)
	}
	ledger := credits.NewLedger(mirror, credits.Config{
		Plan:       plan,
		UnlockCost: cfg.Ledger.UnlockCost,
		Location:   loc,
	}, logger)
	closers = append(closers, ledger.Close)
	if cfg.Ledger.AccountID != "" {
		ledger.SignIn(ctx, cfg.Ledger.AccountID)
	}

	builtin, err := builtinAnalyzer(cfg.AI)
	if err != nil {
		return fail(err)
	}
	sealer, err := ai.NewKeySealer(cfg.AI.SealKey)
	if err != nil {
		return fail(err)
	}
	provider := ai.NewRouter(builtin, ledger, store, sealer, logger)
	if err := provider.Load(ctx); err != nil {
		logger.Warn("provider settings not restored", "error", err)
	}
	coordinator := enrichment.NewCoordinator(provider, ledger, logger, enrichment.WithCeiling(cfg.AI.Ceiling))

	images, err := imageStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	publisher, err := eventPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func(context.Context) error { return publisher.Close() })

	fetcher := metadata.NewCachingFetcher(metadata.NewHTTPFetcher(cfg.Fetch.Timeout), cfg.Fetch.CacheTTL)
	pipeline := ingest.NewPipeline(fetcher, images, coordinator, store, publisher, logger)

	capturer := snapshots.NewExclusive(snapshots.NewCommandCapturer(cfg.Snapshot.Browser, images))
	scheduler := snapshots.NewScheduler(store, capturer, snapshots.Config{
		CaptureTimeout: cfg.Snapshot.CaptureTimeout,
		Interval:       cfg.Snapshot.Interval,
		Debounce:       cfg.Snapshot.Debounce,
	}, logger)
	closers = append(closers, scheduler.Shutdown)

	limiter := middleware.NewIPRateLimiter(middleware.RateLimitConfig{
		Requests: cfg.HTTP.RateLimitPerMin,
		Window:   time.Minute,
		Burst:    cfg.HTTP.RateLimitBurst,
	})

	return &components{
		Resolver:    resolver,
		Store:       store,
		Ledger:      ledger,
		Provider:    provider,
		Coordinator: coordinator,
		Pipeline:    pipeline,
		Scheduler:   scheduler,
		Events:      publisher,
		Limiter:     limiter,
	}, cleanup, nil
}

// builtinAnalyzer returns the metered vendor, or nil when no key is configured so every
// enrichment uses generated content.
func builtinAnalyzer(cfg config.AIConfig) (ai.Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Vendor {
	case "", string(ai.ModeOpenAI):
		return ai.NewOpenAIClient(cfg.APIKey, cfg.Endpoint, cfg.Model), nil
	case string(ai.ModeAnthropic):
		return ai.NewAnthropicClient(cfg.APIKey, cfg.Endpoint, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown ai vendor %q", cfg.Vendor)
	}
}

func imageStore(ctx context.Context, cfg config.Config) (ingest.ImageStore, error) {
	if cfg.ObjectStore.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	local, err := storage.NewLocalStore(cfg.Storage.ImagesDir)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func eventPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (events.Publisher, error) {
	if cfg.URL == "" {
		return events.Nop{}, nil
	}
	publisher, err := events.NewRabbitMQ(events.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}, logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}
