package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/stashlink/backend/internal/db"
	"github.com/stashlink/backend/migrations"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func runMigrations(c *cli.Context) error {
	ctx := c.Context
	cfg, _, err := runtime()
	if err != nil {
		return err
	}
	if cfg.Ledger.DatabaseURL == "" {
		return errors.New("migrate requires STASH_DATABASE_URL")
	}

	command := c.Args().First()
	if command == "" {
		command = "up"
	}

	source, err := fs.Sub(migrations.Postgres, "postgres")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	names, err := migrationNames(source)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.Ledger.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	out := c.App.Writer
	switch command {
	case "status":
		printMigrationStatus(out, names, applied)
		return nil
	case "up":
		if len(names) == 0 {
			fmt.Fprintln(out, "no migrations to apply")
			return nil
		}
		for _, name := range names {
			if _, ok := applied[name]; ok {
				continue
			}
			contents, err := fs.ReadFile(source, name)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", name, err)
			}
			if err := applyMigrationWithRetry(ctx, out, conn, name, string(contents)); err != nil {
				return err
			}
			fmt.Fprintf(out, "applied migration %s\n", name)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func printMigrationStatus(w io.Writer, names []string, applied map[string]struct{}) {
	for _, name := range names {
		mark := " "
		if _, ok := applied[name]; ok {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, name)
	}
}

func migrationBackoff(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
	if backoff > migrationMaxBackoff {
		backoff = migrationMaxBackoff
	}
	return backoff
}

func applyMigrationWithRetry(ctx context.Context, out io.Writer, conn *pgxpool.Conn, name string, contents string) error {
	var attempt int
	for attempt = 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(migrationBackoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		retry, err := applyMigrationOnce(ctx, conn, name, contents)
		if err == nil {
			return nil
		}
		if !retry || attempt == migrationMaxRetries-1 {
			return err
		}
		fmt.Fprintf(out, "transient error applying migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
	}

	return fmt.Errorf("apply migration %s: exceeded max retries (%d)", name, attempt)
}

// applyMigrationOnce runs one serializable attempt and reports whether a failure is
// worth retrying.
func applyMigrationOnce(ctx context.Context, conn *pgxpool.Conn, name, contents string) (bool, error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, contents); err != nil {
		_ = tx.Rollback(ctx)
		return shouldRetryMigration(err), fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback(ctx)
		return shouldRetryMigration(err), fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return shouldRetryMigration(err), fmt.Errorf("commit migration %s: %w", name, err)
	}
	return false, nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	return errors.Is(err, pgx.ErrTxClosed)
}
