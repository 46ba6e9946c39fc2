package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/stashlink/backend/internal/ai"
	"github.com/stashlink/backend/internal/credits"
	"github.com/stashlink/backend/internal/enrichment/mocks"
	"github.com/stashlink/backend/internal/fallback"
	"github.com/stashlink/backend/internal/models"
)

const (
	designTitle = "Figma design system tips"
	designURL   = "https://www.figma.com/community/file/1"
)

type CoordinatorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	provider *mocks.MockProvider
	ledger   *mocks.MockLedger
	analyzer *mocks.MockAnalyzer

	coordinator *Coordinator
	fallback    fallback.Content
}

func (s *CoordinatorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.provider = mocks.NewMockProvider(s.ctrl)
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.analyzer = mocks.NewMockAnalyzer(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.coordinator = NewCoordinator(s.provider, s.ledger, logger, WithCeiling(50*time.Millisecond))
	s.fallback = fallback.Generator{}.Generate(designTitle, "www.figma.com")
}

func (s *CoordinatorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

func (s *CoordinatorTestSuite) expectCharge(cost float64) {
	s.ledger.EXPECT().RefreshIfDue().Return(false)
	s.ledger.EXPECT().CanAfford(cost).Return(true)
	s.ledger.EXPECT().Debit(cost).Return(true)
}

func (s *CoordinatorTestSuite) TestEnrich_AIWins() {
	ctx := context.Background()

	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.expectCharge(credits.CostSummary)
	s.analyzer.EXPECT().Analyze(gomock.Any(), designTitle, designURL).Return(ai.Analysis{
		Summary: "  A tour of a shared design system.  ",
		Tags:    []string{"#Design", "design", "Figma", "UI", "Extra"},
	}, nil)

	result := s.coordinator.Enrich(ctx, designTitle, designURL)

	s.Equal(SourceAI, result.Source)
	s.Equal("A tour of a shared design system.", result.Summary)
	s.Equal([]string{"Design", "Figma", "UI"}, result.Tags)
	s.False(result.Source.Fallback())
}

func (s *CoordinatorTestSuite) TestEnrich_CreditLimited() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.ledger.EXPECT().RefreshIfDue().Return(false)
	s.ledger.EXPECT().CanAfford(credits.CostSummary).Return(false)

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceFallbackCreditLimited, result.Source)
	s.Equal(s.fallback.Summary, result.Summary)
	s.Equal(s.fallback.Tags, result.Tags)
}

func (s *CoordinatorTestSuite) TestEnrich_DebitRejected() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.ledger.EXPECT().RefreshIfDue().Return(false)
	s.ledger.EXPECT().CanAfford(credits.CostSummary).Return(true)
	s.ledger.EXPECT().Debit(credits.CostSummary).Return(false)

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceFallbackCreditLimited, result.Source)
}

func (s *CoordinatorTestSuite) TestEnrich_VendorError() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.expectCharge(credits.CostSummary)
	s.analyzer.EXPECT().Analyze(gomock.Any(), designTitle, designURL).Return(ai.Analysis{}, errors.New("connection reset"))

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceFallbackVendorError, result.Source)
	s.Equal(s.fallback.Summary, result.Summary)
}

func (s *CoordinatorTestSuite) TestEnrich_EmptySummaryIsVendorError() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.expectCharge(credits.CostSummary)
	s.analyzer.EXPECT().Analyze(gomock.Any(), designTitle, designURL).Return(ai.Analysis{Summary: "   "}, nil)

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceFallbackVendorError, result.Source)
}

func (s *CoordinatorTestSuite) TestEnrich_TimeoutAbandonsVendor() {
	abandoned := make(chan struct{})

	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.expectCharge(credits.CostSummary)
	s.analyzer.EXPECT().Analyze(gomock.Any(), designTitle, designURL).DoAndReturn(
		func(ctx context.Context, _, _ string) (ai.Analysis, error) {
			defer close(abandoned)
			<-ctx.Done()
			return ai.Analysis{Summary: "too late"}, nil
		},
	)

	start := time.Now()
	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)
	elapsed := time.Since(start)

	s.Equal(SourceFallbackTimeout, result.Source)
	s.Equal(s.fallback.Summary, result.Summary)
	s.Equal(s.fallback.Tags, result.Tags)
	s.Less(elapsed, time.Second)

	select {
	case <-abandoned:
	case <-time.After(time.Second):
		s.Fail("vendor call was not cancelled after losing the race")
	}
}

func (s *CoordinatorTestSuite) TestEnrich_NoProvider() {
	s.provider.EXPECT().Active().Return(nil, true)

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceFallbackNoProvider, result.Source)
	s.Equal(s.fallback.Summary, result.Summary)
}

func (s *CoordinatorTestSuite) TestEnrich_UnmeteredSkipsLedger() {
	s.provider.EXPECT().Active().Return(s.analyzer, false)
	s.analyzer.EXPECT().Analyze(gomock.Any(), designTitle, designURL).Return(ai.Analysis{Summary: "ok"}, nil)

	result := s.coordinator.Enrich(context.Background(), designTitle, designURL)

	s.Equal(SourceAI, result.Source)
	s.Equal([]string{fallback.DefaultTag}, result.Tags)
}

func (s *CoordinatorTestSuite) TestChat_Success() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.expectCharge(credits.CostChat)
	s.analyzer.EXPECT().Chat(gomock.Any(), "what is it?", "notes").Return("an answer", nil)

	answer, err := s.coordinator.Chat(context.Background(), "what is it?", "notes")

	s.NoError(err)
	s.Equal("an answer", answer)
}

func (s *CoordinatorTestSuite) TestChat_InsufficientCredits() {
	s.provider.EXPECT().Active().Return(s.analyzer, true)
	s.ledger.EXPECT().RefreshIfDue().Return(false)
	s.ledger.EXPECT().CanAfford(credits.CostChat).Return(false)

	_, err := s.coordinator.Chat(context.Background(), "q", "")

	s.ErrorIs(err, ErrInsufficientCredits)
}

func (s *CoordinatorTestSuite) TestChat_VendorFailure() {
	s.provider.EXPECT().Active().Return(s.analyzer, false)
	s.analyzer.EXPECT().Chat(gomock.Any(), "q", "").Return("", errors.New("503"))

	_, err := s.coordinator.Chat(context.Background(), "q", "")

	s.ErrorIs(err, ErrVendorUnavailable)
}

func (s *CoordinatorTestSuite) TestChat_NoProvider() {
	s.provider.EXPECT().Active().Return(nil, true)

	_, err := s.coordinator.Chat(context.Background(), "q", "")

	s.ErrorIs(err, ErrVendorUnavailable)
}

type staticProvider struct{ analyzer ai.Analyzer }

func (p staticProvider) Active() (ai.Analyzer, bool) { return p.analyzer, true }

type instantAnalyzer struct{}

func (instantAnalyzer) Analyze(context.Context, string, string) (ai.Analysis, error) {
	return ai.Analysis{Summary: "summary", Tags: []string{"Go"}}, nil
}

func (instantAnalyzer) Chat(context.Context, string, string) (string, error) { return "", nil }

func TestCoordinatorDrainsFreePlanAllotment(t *testing.T) {
	ledger := credits.NewLedger(nil, credits.Config{Plan: models.PlanFree, Location: time.UTC}, nil)
	t.Cleanup(func() { _ = ledger.Close(context.Background()) })

	coordinator := NewCoordinator(staticProvider{analyzer: instantAnalyzer{}}, ledger, nil)

	for i := 0; i < 5; i++ {
		if got := coordinator.Enrich(context.Background(), "Go", "https://go.dev"); got.Source != SourceAI {
			t.Fatalf("enrichment %d: expected ai source got %s", i, got.Source)
		}
	}

	got := coordinator.Enrich(context.Background(), "Go", "https://go.dev")
	if got.Source != SourceFallbackCreditLimited {
		t.Fatalf("expected credit limited fallback got %s", got.Source)
	}
	if remaining := ledger.Account().Remaining; remaining != 0 {
		t.Fatalf("expected empty balance got %v", remaining)
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=1": "www.youtube.com",
		"http://example.com:8080/a":         "example.com",
		"not a url":                         "",
		"::":                                "",
	}
	for raw, want := range tests {
		if got := hostOf(raw); got != want {
			t.Fatalf("hostOf(%q) = %q want %q", raw, got, want)
		}
	}
}
