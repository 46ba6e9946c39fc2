package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/stashlink/backend/internal/backend"
	"github.com/stashlink/backend/internal/config"
	"github.com/stashlink/backend/internal/handlers"
	"github.com/stashlink/backend/internal/httpserver"
	"github.com/stashlink/backend/internal/ingest"
	"github.com/stashlink/backend/internal/logging"
)

// Run bootstraps the Stash backend application.
func Run(ctx context.Context, args []string) error {
	return newCLI(os.Stdout).RunContext(ctx, append([]string{"stash"}, args...))
}

func newCLI(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "stash",
		Usage:  "save, enrich and snapshot shared links",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "save one link and print the stored record",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Usage: "path of an image shared with the link"},
				},
				Action: ingestLink,
			},
			{
				Name:   "snapshots",
				Usage:  "run one pass over assets still waiting for a snapshot",
				Action: runSnapshots,
			},
			{
				Name:  "storage",
				Usage: "resolve the record store and print the outcome",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "continue-offline", Usage: "accept a recoverable storage issue"},
				},
				Action: showStorage,
			},
			{
				Name:      "migrate",
				Usage:     "manage the ledger mirror schema",
				ArgsUsage: "[up|status]",
				Action:    runMigrations,
			},
		},
	}
}

// runtime loads configuration and the process logger shared by every command.
func runtime() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// withComponents builds every collaborator, runs fn and releases them again.
func withComponents(ctx context.Context, fn func(*components, config.Config, *slog.Logger) error) error {
	cfg, logger, err := runtime()
	if err != nil {
		return err
	}

	mirror, closeMirror, err := openMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeMirror(context.Background()) }()

	comps, cleanup, err := buildDependencies(ctx, cfg, mirror, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	return fn(comps, cfg, logger)
}

func serve(c *cli.Context) error {
	ctx := c.Context
	return withComponents(ctx, func(comps *components, cfg config.Config, logger *slog.Logger) error {
		handler := handlers.NewRouter(comps.Handlers(), logger)
		srv := httpserver.New(cfg.HTTP.Addr, handler, logger)

		// Retry snapshots left pending by a previous run.
		comps.Scheduler.Activate(ctx)

		srvErr := make(chan error, 1)
		go func() {
			srvErr <- srv.Start()
		}()

		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalCh)

		select {
		case <-ctx.Done():
			logger.Info("context canceled, shutting down server")
		case sig := <-signalCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
		case err := <-srvErr:
			if err != nil {
				return err
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = httpserver.ShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

func ingestLink(c *cli.Context) error {
	rawURL := c.Args().First()
	if rawURL == "" {
		return errors.New("expected a url to ingest")
	}

	share := ingest.Share{URL: rawURL}
	if path := c.String("image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read shared image: %w", err)
		}
		share.Image = data
	}

	return withComponents(c.Context, func(comps *components, _ config.Config, _ *slog.Logger) error {
		asset, err := comps.Pipeline.Ingest(c.Context, share)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, asset)
	})
}

func runSnapshots(c *cli.Context) error {
	return withComponents(c.Context, func(comps *components, _ config.Config, _ *slog.Logger) error {
		summary, err := comps.Scheduler.RunPending(c.Context)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, summary)
	})
}

type storageReport struct {
	Configuration backend.Configuration `json:"configuration"`
	Durable       bool                  `json:"durable"`
	Issue         *backend.Issue        `json:"issue,omitempty"`
}

func showStorage(c *cli.Context) error {
	cfg, logger, err := runtime()
	if err != nil {
		return err
	}

	resolver := backend.NewResolver(backend.DirLocator{Dir: cfg.Storage.SharedDir}, backend.SQLiteValidator{}, cfg.Storage.PrivateDir, logger)
	resolver.Bootstrap(c.Context)
	if c.Bool("continue-offline") && !resolver.ContinueOffline() {
		logger.Warn("storage issue cannot be skipped")
	}

	current, issue := resolver.Current()
	return printJSON(c.App.Writer, storageReport{Configuration: current, Durable: current.Durable(), Issue: issue})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// migrationNames lists the embedded SQL files in apply order.
func migrationNames(fsys fs.FS) ([]string, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
