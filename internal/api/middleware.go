// review-service/internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"review-service/internal/domain"
	"review-service/internal/logging"
	"review-service/internal/metrics"
	"review-service/internal/policy"
	"review-service/internal/store"
	"review-service/pkg/auth"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ContextKey is used for request-scoped values.
type ContextKey string

const (
	// ActorKey holds the policy.Actor of the caller. Anonymous callers get
	// the zero Actor.
	ActorKey ContextKey = "actor"
	// UserKey holds the *domain.User loaded for an authenticated caller.
	UserKey ContextKey = "user"
)

const requestIDHeader = "X-Request-ID"

// ActorFromContext returns the caller, anonymous if none was resolved.
func ActorFromContext(ctx context.Context) policy.Actor {
	if a, ok := ctx.Value(ActorKey).(policy.Actor); ok {
		return a
	}
	return policy.Actor{}
}

func userFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(UserKey).(*domain.User)
	return u
}

// RequestIDMiddleware propagates or assigns X-Request-ID and stores it in the
// context so every log line of the request carries it.
func (h *HTTPHandler) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// RecoverMiddleware turns a handler panic into a logged 500.
func (h *HTTPHandler) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.ErrorContext(r.Context(), "Handler panicked",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request count and latency per route template,
// keeping label cardinality independent of ids in the path.
func (h *HTTPHandler) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		metrics.TrackInFlight(true)
		defer metrics.TrackInFlight(false)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		metrics.RecordAPIRequest(r.Method, route, rec.status, duration)
		h.logger.DebugContext(r.Context(), "HTTP request served",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("duration", duration))
	})
}

// AuthMiddleware resolves the caller from an optional Bearer access token.
// Requests without an Authorization header continue anonymously; a header
// that is malformed, expired or names a deleted account is rejected with 401.
func (h *HTTPHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, tokenString, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
		tokenString = strings.TrimSpace(tokenString)
		if !ok || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
			h.logger.WarnContext(ctx, "Invalid Authorization header format")
			h.respondError(w, r, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := h.tokenManager.Validate(tokenString, auth.KindAccess)
		if err != nil {
			h.logger.WarnContext(ctx, "Invalid or expired token", slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := h.stores.Users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				h.logger.WarnContext(ctx, "Token refers to a deleted account", slog.String("userID", claims.UserID))
				h.respondError(w, r, http.StatusUnauthorized, "User not found")
				return
			}
			h.logger.ErrorContext(ctx, "Failed to load token owner", slog.String("userID", claims.UserID), slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx = context.WithValue(ctx, UserKey, user)
		ctx = context.WithValue(ctx, ActorKey, policy.ActorFromUser(user))
		h.logger.DebugContext(ctx, "Token validated successfully", slog.String("userID", user.ID), slog.String("role", string(user.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
