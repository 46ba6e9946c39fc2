// Package enrichment decides between a vendor AI summary and the deterministic fallback
// for a saved link, never waiting longer than a fixed ceiling.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/fallback"
)

// DefaultCeiling bounds how long Enrich waits for a vendor.
const DefaultCeiling = 15 * time.Second

var (
	// ErrInsufficientCredits is returned by premium actions the balance cannot cover.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrVendorUnavailable is returned when no analyzer is configured or it failed.
	ErrVendorUnavailable = errors.New("ai vendor unavailable")
)

// Source records where an enrichment result came from.
type Source string

const (
	SourceAI                    Source = "ai"
	SourceFallbackCreditLimited Source = "fallback-credit-limited"
	SourceFallbackTimeout       Source = "fallback-timeout"
	SourceFallbackVendorError   Source = "fallback-vendor-error"
	SourceFallbackNoProvider    Source = "fallback-no-provider"
)

// Fallback reports whether the result came from the rule-based generator.
func (s Source) Fallback() bool {
	return s != SourceAI
}

// Result is the summary and tags chosen for a link.
type Result struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Source  Source   `json:"source"`
}

// Coordinator races the vendor against the ceiling timer.
type Coordinator struct {
	provider  Provider
	ledger    Ledger
	generator fallback.Generator
	ceiling   time.Duration
	logger    *slog.Logger
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithCeiling overrides DefaultCeiling.
func WithCeiling(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.ceiling = d
		}
	}
}

// WithGenerator overrides the fallback generator, mostly to pin generic summaries in tests.
func WithGenerator(g fallback.Generator) Option {
	return func(c *Coordinator) {
		c.generator = g
	}
}

// NewCoordinator wires the coordinator to its provider and ledger.
func NewCoordinator(provider Provider, ledger Ledger, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		provider: provider,
		ledger:   ledger,
		ceiling:  DefaultCeiling,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analysisResult struct {
	analysis ai.Analysis
	err      error
}

// Enrich always returns a usable result. Vendor failures and timeouts degrade to the
// fallback; they are never surfaced as errors.
func (c *Coordinator) Enrich(ctx context.Context, title, rawURL string) Result {
	content := c.generator.Generate(title, hostOf(rawURL))
	fallbackResult := func(source Source) Result {
		return Result{Summary: content.Summary, Tags: content.Tags, Source: source}
	}

	analyzer, metered := c.active()
	if analyzer == nil {
		return fallbackResult(SourceFallbackNoProvider)
	}

	if metered {
		if !c.charge(credits.CostSummary) {
			c.logger.Info("enrichment credit limited", "url", rawURL)
			return fallbackResult(SourceFallbackCreditLimited)
		}
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan analysisResult, 1)
	go func() {
		analysis, err := analyzer.Analyze(raceCtx, title, rawURL)
		done <- analysisResult{analysis: analysis, err: err}
	}()

	timer := time.NewTimer(c.ceiling)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil || strings.TrimSpace(res.analysis.Summary) == "" {
			c.logger.Warn("ai analysis failed", "url", rawURL, "error", res.err)
			return fallbackResult(SourceFallbackVendorError)
		}
		return Result{
			Summary: strings.TrimSpace(res.analysis.Summary),
			Tags:    ai.NormalizeTags(res.analysis.Tags),
			Source:  SourceAI,
		}
	case <-timer.C:
		c.logger.Warn("ai analysis timed out", "url", rawURL, "ceiling", c.ceiling)
		return fallbackResult(SourceFallbackTimeout)
	case <-ctx.Done():
		return fallbackResult(SourceFallbackTimeout)
	}
}

// Chat answers a question about saved content. Unlike Enrich it reports failures, since
// chat is an explicit premium action.
func (c *Coordinator) Chat(ctx context.Context, query, background string) (string, error) {
	analyzer, metered := c.active()
	if analyzer == nil {
		return "", ErrVendorUnavailable
	}
	if metered && !c.charge(credits.CostChat) {
		return "", ErrInsufficientCredits
	}

	chatCtx, cancel := context.WithTimeout(ctx, c.ceiling)
	defer cancel()

	answer, err := analyzer.Chat(chatCtx, query, background)
	if err != nil {
		c.logger.Warn("ai chat failed", "error", err)
		return "", errors.Join(ErrVendorUnavailable, err)
	}
	return answer, nil
}

func (c *Coordinator) active() (ai.Analyzer, bool) {
	if c.provider == nil {
		return nil, false
	}
	return c.provider.Active()
}

func (c *Coordinator) charge(cost float64) bool {
	if c.ledger == nil {
		return false
	}
	c.ledger.RefreshIfDue()
	if !c.ledger.CanAfford(cost) {
		return false
	}
	return c.ledger.Debit(cost)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
