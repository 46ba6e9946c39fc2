package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Mode selects which vendor serves AI requests.
type Mode string

const (
	ModeBuiltin   Mode = "builtin"
	ModeOpenAI    Mode = "openai"
	ModeAnthropic Mode = "anthropic"
)

const providerSettingKey = "ai.provider"

// ParseMode validates a provider mode name.
func ParseMode(name string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(name))); mode {
	case ModeBuiltin, ModeOpenAI, ModeAnthropic:
		return mode, nil
	case "":
		return ModeBuiltin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Settings is the user's provider choice.
type Settings struct {
	Mode     Mode
	APIKey   string
	Endpoint string
}

// UnlockChecker reports whether custom providers have been paid for.
type UnlockChecker interface {
	ProviderUnlocked() bool
}

// SettingsStore persists small opaque values.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) ([]byte, bool, error)
	PutSetting(ctx context.Context, key string, value []byte) error
}

type storedSettings struct {
	Mode      Mode   `json:"mode"`
	SealedKey string `json:"sealedKey,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// Router picks between the built-in metered vendor and a user-supplied one.
type Router struct {
	builtin Analyzer
	unlock  UnlockChecker
	store   SettingsStore
	sealer  *KeySealer
	logger  *slog.Logger

	mu     sync.RWMutex
	mode   Mode
	custom Analyzer
}

// NewRouter constructs a router. builtin may be nil when no vendor key is configured;
// store may be nil to keep settings in memory only.
func NewRouter(builtin Analyzer, unlock UnlockChecker, store SettingsStore, sealer *KeySealer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		builtin: builtin,
		unlock:  unlock,
		store:   store,
		sealer:  sealer,
		logger:  logger,
		mode:    ModeBuiltin,
	}
}

// Active returns the analyzer in force and whether its use is metered by credits.
// Custom providers only apply while the unlock flag is set.
func (r *Router) Active() (Analyzer, bool) {
	r.mu.RLock()
	custom := r.custom
	r.mu.RUnlock()

	if custom != nil && r.unlock != nil && r.unlock.ProviderUnlocked() {
		return custom, false
	}
	if r.builtin == nil {
		return nil, true
	}
	return r.builtin, true
}

// Mode reports the configured provider mode.
func (r *Router) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Configure switches provider. Custom modes require the unlock and an API key.
func (r *Router) Configure(ctx context.Context, settings Settings) error {
	mode, err := ParseMode(string(settings.Mode))
	if err != nil {
		return err
	}

	if mode == ModeBuiltin {
		r.mu.Lock()
		r.mode, r.custom = ModeBuiltin, nil
		r.mu.Unlock()
		return r.persist(ctx, storedSettings{Mode: ModeBuiltin})
	}

	if r.unlock == nil || !r.unlock.ProviderUnlocked() {
		return ErrProviderLocked
	}
	key := strings.TrimSpace(settings.APIKey)
	if key == "" {
		return ErrMissingAPIKey
	}

	stored := storedSettings{Mode: mode, Endpoint: strings.TrimSpace(settings.Endpoint)}
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(key)
		if err != nil {
			return err
		}
		stored.SealedKey = sealed
	}

	r.mu.Lock()
	r.mode, r.custom = mode, newCustomClient(mode, key, stored.Endpoint)
	r.mu.Unlock()

	return r.persist(ctx, stored)
}

// Load restores persisted settings. Unreadable settings fall back to the built-in
// provider.
func (r *Router) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	raw, ok, err := r.store.GetSetting(ctx, providerSettingKey)
	if err != nil {
		return fmt.Errorf("load provider settings: %w", err)
	}
	if !ok {
		return nil
	}

	var stored storedSettings
	if err := json.Unmarshal(raw, &stored); err != nil {
		r.logger.Warn("ignoring unreadable provider settings", "error", err)
		return nil
	}
	if stored.Mode == "" || stored.Mode == ModeBuiltin || r.sealer == nil {
		return nil
	}

	key, err := r.sealer.Open(stored.SealedKey)
	if err != nil {
		r.logger.Warn("ignoring provider settings with unreadable key", "mode", stored.Mode, "error", err)
		return nil
	}

	r.mu.Lock()
	r.mode, r.custom = stored.Mode, newCustomClient(stored.Mode, key, stored.Endpoint)
	r.mu.Unlock()
	return nil
}

func (r *Router) persist(ctx context.Context, stored storedSettings) error {
	if r.store == nil {
		return nil
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode provider settings: %w", err)
	}
	if err := r.store.PutSetting(ctx, providerSettingKey, raw); err != nil {
		return fmt.Errorf("save provider settings: %w", err)
	}
	return nil
}

func newCustomClient(mode Mode, key, endpoint string) Analyzer {
	if mode == ModeAnthropic {
		return NewAnthropicClient(key, endpoint, "")
	}
	return NewOpenAIClient(key, endpoint, "")
}
