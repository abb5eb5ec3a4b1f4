// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/utils"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	accountIDContextKey contextKey = "accountID"

	// AccountIDHeader identifies the calling account.
	AccountIDHeader = "X-Account-ID"
	RequestIDHeader = "X-Request-ID"
)

// ContextualLoggerMiddleware gives every request a requestID and a logger carrying it.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountMiddleware resolves the X-Account-ID header to an existing account
// and puts its ID in the request context.
func (h *AccountHandler) AccountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		accountID := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if accountID == "" {
			ctxLogger.Debug("AccountMiddleware: account header missing", "path", r.URL.Path)
			utils.SendJSONError(w, AccountIDHeader+" header required", http.StatusUnauthorized)
			return
		}
		if _, err := h.accountService.GetAccount(r.Context(), accountID); err != nil {
			ctxLogger.Warn("AccountMiddleware: unknown account", "accountID", accountID, "error", err)
			utils.SendJSONError(w, "Unknown account", http.StatusUnauthorized)
			return
		}

		enrichedLogger := ctxLogger.With(slog.String("accountID", accountID))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, accountIDContextKey, accountID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetAccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountIDContextKey).(string)
	return accountID, ok && accountID != ""
}

// RateLimitMiddleware throttles all requests through one token bucket.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
				utils.SendJSONError(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
