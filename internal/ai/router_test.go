package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

type unlockStub bool

func (u unlockStub) ProviderUnlocked() bool { return bool(u) }

type settingsStub struct {
	values map[string][]byte
}

func (s *settingsStub) GetSetting(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *settingsStub) PutSetting(_ context.Context, key string, value []byte) error {
	if s.values == nil {
		s.values = make(map[string][]byte)
	}
	s.values[key] = value
	return nil
}

type analyzerStub struct{ name string }

func (a analyzerStub) Analyze(context.Context, string, string) (Analysis, error) {
	return Analysis{Summary: a.name}, nil
}

func (a analyzerStub) Chat(context.Context, string, string) (string, error) { return a.name, nil }

func testSealer(t *testing.T) *KeySealer {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	sealer, err := NewKeySealer(secret)
	if err != nil {
		t.Fatalf("NewKeySealer() error = %v", err)
	}
	return sealer
}

func TestRouterDefaultsToBuiltin(t *testing.T) {
	builtin := analyzerStub{name: "builtin"}
	router := NewRouter(builtin, unlockStub(false), nil, nil, nil)

	active, metered := router.Active()
	if active != builtin || !metered {
		t.Fatalf("expected metered builtin, got %v metered=%v", active, metered)
	}
	if router.Mode() != ModeBuiltin {
		t.Fatalf("unexpected mode %s", router.Mode())
	}
}

func TestRouterNoBuiltin(t *testing.T) {
	router := NewRouter(nil, unlockStub(false), nil, nil, nil)
	if active, _ := router.Active(); active != nil {
		t.Fatalf("expected no analyzer got %v", active)
	}
}

func TestRouterConfigureRequiresUnlock(t *testing.T) {
	router := NewRouter(analyzerStub{}, unlockStub(false), nil, nil, nil)

	err := router.Configure(context.Background(), Settings{Mode: ModeOpenAI, APIKey: "sk"})
	if !errors.Is(err, ErrProviderLocked) {
		t.Fatalf("expected ErrProviderLocked got %v", err)
	}
}

func TestRouterConfigureValidation(t *testing.T) {
	router := NewRouter(analyzerStub{}, unlockStub(true), nil, nil, nil)

	if err := router.Configure(context.Background(), Settings{Mode: ModeAnthropic}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey got %v", err)
	}
	if err := router.Configure(context.Background(), Settings{Mode: "gemini", APIKey: "x"}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode got %v", err)
	}
}

func TestRouterCustomProviderIsUnmetered(t *testing.T) {
	store := &settingsStub{}
	router := NewRouter(analyzerStub{name: "builtin"}, unlockStub(true), store, testSealer(t), nil)

	if err := router.Configure(context.Background(), Settings{Mode: ModeAnthropic, APIKey: "ak-secret"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	active, metered := router.Active()
	if _, ok := active.(*AnthropicClient); !ok || metered {
		t.Fatalf("expected unmetered anthropic client, got %T metered=%v", active, metered)
	}
	if strings.Contains(string(store.values[providerSettingKey]), "ak-secret") {
		t.Fatal("api key must not be stored in plain text")
	}
}

func TestRouterLoadRestoresSealedSettings(t *testing.T) {
	store := &settingsStub{}
	sealer := testSealer(t)

	first := NewRouter(nil, unlockStub(true), store, sealer, nil)
	if err := first.Configure(context.Background(), Settings{Mode: ModeOpenAI, APIKey: "sk-secret", Endpoint: "https://llm.internal/v1/chat"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	second := NewRouter(nil, unlockStub(true), store, sealer, nil)
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	active, _ := second.Active()
	client, ok := active.(*OpenAIClient)
	if !ok {
		t.Fatalf("expected openai client got %T", active)
	}
	if client.APIKey != "sk-secret" || client.Endpoint != "https://llm.internal/v1/chat" {
		t.Fatalf("unexpected restored client: %+v", client)
	}
}

func TestRouterCustomIgnoredWhenLocked(t *testing.T) {
	unlocked := true
	checker := unlockFunc(func() bool { return unlocked })
	builtin := analyzerStub{name: "builtin"}
	router := NewRouter(builtin, checker, nil, nil, nil)

	if err := router.Configure(context.Background(), Settings{Mode: ModeOpenAI, APIKey: "sk"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	unlocked = false
	if active, metered := router.Active(); active != builtin || !metered {
		t.Fatalf("expected builtin once locked again, got %T", active)
	}
}

type unlockFunc func() bool

func (f unlockFunc) ProviderUnlocked() bool { return f() }

func TestKeySealerRejectsTampering(t *testing.T) {
	sealer := testSealer(t)
	sealed, err := sealer.Seal("value")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	if _, err := sealer.Open(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Fatal("expected tampered box to be rejected")
	}

	other, err := NewKeySealer("")
	if err != nil {
		t.Fatalf("NewKeySealer() error = %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("expected a different key to fail")
	}

	if _, err := NewKeySealer(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}
