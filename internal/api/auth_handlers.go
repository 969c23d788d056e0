// review-service/internal/api/auth_handlers.go
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/store"
	"review-service/pkg/auth"

	"github.com/google/uuid"
)

// Signup registers an account, or reuses the one matching both username and
// email, and mails it a fresh confirmation code.
func (h *HTTPHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "HTTP Signup request received", slog.String("path", r.URL.Path))

	var req domain.SignupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	byName, err := h.stores.Users.GetByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.handleStoreError(w, r, err, "signup: lookup username")
		return
	}
	byEmail, err := h.stores.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.handleStoreError(w, r, err, "signup: lookup email")
		return
	}

	var user *domain.User
	switch {
	case byName != nil && byName.Email == req.Email:
		user = byName
		h.logger.InfoContext(ctx, "Re-issuing confirmation code for existing account", slog.String("username", user.Username))
	case byName != nil:
		h.respondFieldError(w, r, "username", "A user with that username already exists.")
		return
	case byEmail != nil:
		h.respondFieldError(w, r, "email", "A user with that email already exists.")
		return
	default:
		user = &domain.User{
			ID:       uuid.NewString(),
			Username: req.Username,
			Email:    req.Email,
			Role:     domain.RoleUser,
		}
		if err := h.stores.Users.Create(ctx, user); err != nil {
			h.logger.WarnContext(ctx, "Failed to create account on signup", slog.String("username", req.Username), slog.String("error", err.Error()))
			h.handleStoreError(w, r, err, "signup: create")
			return
		}
		h.logger.InfoContext(ctx, "Account registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	}

	code, err := auth.GenerateConfirmationCode(h.opts.CodeLength)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to generate confirmation code", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Error processing signup")
		return
	}
	hash, err := auth.HashConfirmationCode(code)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to hash confirmation code", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Error processing signup")
		return
	}
	if err := h.stores.Users.SetConfirmationCode(ctx, user.ID, &hash); err != nil {
		h.handleStoreError(w, r, err, "signup: store code")
		return
	}
	if err := h.mailer.SendConfirmationCode(ctx, user.Username, user.Email, code); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "Failed to send confirmation code")
		return
	}

	metrics.RecordAuthEvent("signup")
	h.respondJSON(w, r, http.StatusOK, domain.SignupResponse{Username: user.Username, Email: user.Email})
}

// IssueToken exchanges username and confirmation code for a token pair. The
// code is single-use: it is cleared once redeemed.
func (h *HTTPHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "HTTP IssueToken request received", slog.String("path", r.URL.Path))

	var req domain.TokenRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.stores.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		h.handleStoreError(w, r, err, "token: lookup")
		return
	}

	if !auth.CheckConfirmationCode(strings.TrimSpace(req.ConfirmationCode), user.ConfirmationCodeHash) {
		metrics.RecordAuthEvent("token_rejected")
		h.logger.WarnContext(ctx, "Confirmation code rejected", slog.String("username", user.Username))
		h.respondFieldError(w, r, "confirmation_code", "Invalid confirmation code.")
		return
	}

	// Concurrent requests holding the same code race here; only one clears it.
	if err := h.stores.Users.ConsumeConfirmationCode(ctx, user.ID, *user.ConfirmationCodeHash); err != nil {
		if errors.Is(err, store.ErrCodeConsumed) {
			metrics.RecordAuthEvent("token_rejected")
			h.logger.WarnContext(ctx, "Confirmation code already redeemed", slog.String("username", user.Username))
			h.respondFieldError(w, r, "confirmation_code", "Invalid confirmation code.")
			return
		}
		h.handleStoreError(w, r, err, "token: consume code")
		return
	}

	pair, err := h.tokenManager.IssuePair(user.ID, user.Username, string(user.Role))
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to issue tokens", slog.String("username", user.Username), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Error generating token")
		return
	}

	metrics.RecordAuthEvent("token_issued")
	h.logger.InfoContext(ctx, "Tokens issued", slog.String("userID", user.ID))
	h.respondJSON(w, r, http.StatusOK, domain.TokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// RefreshToken issues a new access token for a valid refresh token.
func (h *HTTPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.RefreshRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	claims, err := h.tokenManager.Validate(req.Refresh, auth.KindRefresh)
	if err != nil {
		h.logger.WarnContext(ctx, "Refresh token rejected", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := h.stores.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.respondError(w, r, http.StatusUnauthorized, "User not found")
			return
		}
		h.handleStoreError(w, r, err, "refresh: lookup")
		return
	}

	access, err := h.tokenManager.IssueAccess(user.ID, user.Username, string(user.Role))
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to issue access token", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Error generating token")
		return
	}

	metrics.RecordAuthEvent("token_refreshed")
	h.respondJSON(w, r, http.StatusOK, domain.AccessResponse{Access: access})
}
