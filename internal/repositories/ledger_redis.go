package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/models"
)

// KeyPrefixCredits namespaces credit accounts in Redis.
const KeyPrefixCredits = "stash:credits:"

// RedisLedgerMirror keeps the remote copy of credit accounts as JSON values in Redis.
type RedisLedgerMirror struct {
	client redis.Cmdable
}

var _ credits.Mirror = (*RedisLedgerMirror)(nil)

func NewRedisLedgerMirror(client redis.Cmdable) *RedisLedgerMirror {
	return &RedisLedgerMirror{client: client}
}

func creditsKey(accountID string) string {
	return KeyPrefixCredits + accountID
}

func (m *RedisLedgerMirror) Upsert(ctx context.Context, account models.CreditAccount) error {
	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode credit account: %w", err)
	}
	if err := m.client.Set(ctx, creditsKey(account.AccountID), payload, 0).Err(); err != nil {
		return fmt.Errorf("store credit account: %w", err)
	}
	return nil
}

func (m *RedisLedgerMirror) Fetch(ctx context.Context, accountID string) (models.CreditAccount, error) {
	raw, err := m.client.Get(ctx, creditsKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.CreditAccount{}, credits.ErrAccountNotFound
		}
		return models.CreditAccount{}, fmt.Errorf("load credit account: %w", err)
	}

	var account models.CreditAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return models.CreditAccount{}, fmt.Errorf("decode credit account: %w", err)
	}
	return account, nil
}

// RedisOptions controls the connection retry loop.
type RedisOptions struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration // total budget for all attempts
	RetryInterval  time.Duration // first backoff, doubled each attempt
	MaxWait        time.Duration
	PingTimeout    time.Duration
}

// ConnectRedis pings until the server answers or ConnectTimeout elapses.
func ConnectRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 250 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	wait := opts.RetryInterval
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				logger.Warn("connected to redis after retry", "addr", opts.Addr, "attempts", attempt)
			} else {
				logger.Info("connected to redis", "addr", opts.Addr)
			}
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
			logger.Warn("redis connection failed, retrying", "addr", opts.Addr, "attempt", attempt, "next_retry_in", wait, "error", err)
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}
