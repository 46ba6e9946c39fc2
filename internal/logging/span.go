package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one unit of work such as an ingestion, a snapshot batch or a storage
// resolution.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	now    func() time.Time
}

// StartSpan derives a child span. A trace id is minted when the context has none, and
// the returned context carries a logger tagged with the trace and span ids.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(slog.String("span_id", spanID), slog.String("span", name))
	if parent := stringFrom(ctx, spanIDKey); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now(), now: time.Now}
}

// Logger returns the span-scoped logger.
func (s *Span) Logger() *slog.Logger {
	if s == nil {
		return slog.Default()
	}
	return s.logger
}

// End logs completion with the elapsed time and any extra attributes.
func (s *Span) End(attrs ...any) {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", s.now().Sub(s.start))}, attrs...)
	s.logger.Info("span completed", args...)
}
