package enrichment

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/stashlink/backend/internal/ai"
)

// Analyzer is the vendor call raced against the ceiling.
type Analyzer interface {
	Analyze(ctx context.Context, title, url string) (ai.Analysis, error)
	Chat(ctx context.Context, query, background string) (string, error)
}

// Provider resolves the analyzer currently in force and whether it consumes credits.
type Provider interface {
	Active() (ai.Analyzer, bool)
}

// Ledger is the subset of the credit ledger the coordinator charges against.
type Ledger interface {
	RefreshIfDue() bool
	CanAfford(amount float64) bool
	Debit(amount float64) bool
}
