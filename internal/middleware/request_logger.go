package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/stashlink/backend/internal/logging"
)

// RequestIDHeader carries a caller-supplied request id; one is minted when absent.
const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped logger and id to every request, logs its
// completion and turns panics into 500 responses.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := base.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = logging.WithRequestID(ctx, requestID)
			ctx = logging.WithTraceID(ctx, requestID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				if rec := recover(); rec != nil {
					reqLogger.Error("panic recovered", "panic", rec)
					if ww.Status() == 0 {
						http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				reqLogger.Info("request completed",
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
