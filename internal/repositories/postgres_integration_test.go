//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresLedgerMirror_UpsertAndFetch(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	mirror := NewPostgresLedgerMirror(testPool)

	_, err := mirror.Fetch(ctx, "acct-1")
	if !errors.Is(err, credits.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	refreshed := time.Date(2026, 5, 6, 18, 30, 0, 0, time.UTC)
	account := models.CreditAccount{
		AccountID:   "acct-1",
		Plan:        models.PlanFree,
		Remaining:   0.5,
		LastRefresh: refreshed,
	}
	if err := mirror.Upsert(ctx, account); err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	account.Plan = models.PlanPro
	account.Remaining = 500
	account.ProviderUnlocked = true
	if err := mirror.Upsert(ctx, account); err != nil {
		t.Fatalf("upsert account again: %v", err)
	}

	got, err := mirror.Fetch(ctx, "acct-1")
	if err != nil {
		t.Fatalf("fetch account: %v", err)
	}
	if got.Plan != models.PlanPro || got.Remaining != 500 || !got.ProviderUnlocked {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.LastRefresh.Year() != 2026 || got.LastRefresh.Month() != time.May || got.LastRefresh.Day() != 6 {
		t.Fatalf("unexpected refresh date: %v", got.LastRefresh)
	}
}

func TestPostgresLedgerMirror_BacksLedgerSignIn(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	mirror := NewPostgresLedgerMirror(testPool)
	ledger := credits.NewLedger(mirror, credits.Config{SyncTimeout: time.Second}, nil)
	t.Cleanup(func() { _ = ledger.Close(context.Background()) })

	account := ledger.SignIn(ctx, "acct-2")
	if account.Remaining != 5 {
		t.Fatalf("expected free allotment, got %v", account.Remaining)
	}
	if !ledger.Debit(1) {
		t.Fatalf("expected debit to succeed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		remote, err := mirror.Fetch(ctx, "acct-2")
		if err == nil && remote.Remaining == 4 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("mirror never received debit: %+v, %v", remote, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations", "postgres")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE credit_accounts"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
