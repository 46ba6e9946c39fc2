package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/db"
	"github.com/stashlink/backend/internal/models"
)

// PostgresLedgerMirror keeps the remote copy of credit accounts in PostgreSQL.
type PostgresLedgerMirror struct {
	pool db.Pool
}

var _ credits.Mirror = (*PostgresLedgerMirror)(nil)

// NewPostgresLedgerMirror constructs a mirror backed by PostgreSQL.
func NewPostgresLedgerMirror(pool db.Pool) *PostgresLedgerMirror {
	return &PostgresLedgerMirror{pool: pool}
}

// Upsert writes the account, replacing any previous copy.
func (m *PostgresLedgerMirror) Upsert(ctx context.Context, account models.CreditAccount) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO credit_accounts (account_id, plan, credits_remaining, last_refresh_date, custom_provider_unlocked, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (account_id) DO UPDATE SET
            plan = EXCLUDED.plan,
            credits_remaining = EXCLUDED.credits_remaining,
            last_refresh_date = EXCLUDED.last_refresh_date,
            custom_provider_unlocked = EXCLUDED.custom_provider_unlocked,
            updated_at = NOW()
    `, account.AccountID, string(account.Plan), account.Remaining, dateOnly(account.LastRefresh), account.ProviderUnlocked)
	if err != nil {
		return fmt.Errorf("upsert credit account: %w", err)
	}
	return nil
}

// Fetch loads an account or returns credits.ErrAccountNotFound.
func (m *PostgresLedgerMirror) Fetch(ctx context.Context, accountID string) (models.CreditAccount, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return models.CreditAccount{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT account_id, plan, credits_remaining, last_refresh_date, custom_provider_unlocked
        FROM credit_accounts
        WHERE account_id = $1
    `, accountID)

	var (
		account models.CreditAccount
		plan    string
	)
	if err := row.Scan(&account.AccountID, &plan, &account.Remaining, &account.LastRefresh, &account.ProviderUnlocked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CreditAccount{}, credits.ErrAccountNotFound
		}
		return models.CreditAccount{}, fmt.Errorf("select credit account: %w", err)
	}
	account.Plan = models.Plan(plan)
	return account, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
