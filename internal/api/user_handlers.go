// review-service/internal/api/user_handlers.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/policy"
	"review-service/internal/store"
	"review-service/internal/validation"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *HTTPHandler) authorizeAccounts(w http.ResponseWriter, r *http.Request, action policy.Action) bool {
	return h.authorize(w, r, policy.Request{Actor: ActorFromContext(r.Context()), Action: action, Resource: policy.ResourceAccount})
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAccounts(w, r, policy.ActionRead) {
		return
	}
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	users, total, err := h.stores.Users.List(r.Context(), params)
	if err != nil {
		h.handleStoreError(w, r, err, "list users")
		return
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(users, total, params))
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorizeAccounts(w, r, policy.ActionCreate) {
		return
	}

	var req domain.CreateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user := &domain.User{ID: uuid.NewString()}
	applyFullUser(user, req)
	if err := h.checkIdentityFree(ctx, user); err != nil {
		h.handleStoreError(w, r, err, "create user: uniqueness")
		return
	}
	if err := h.stores.Users.Create(ctx, user); err != nil {
		h.handleStoreError(w, r, err, "create user")
		return
	}

	metrics.RecordContentWrite("user", "create")
	h.logger.InfoContext(ctx, "Account created by administrator", slog.String("username", user.Username), slog.String("role", string(user.Role)))
	h.respondJSON(w, r, http.StatusCreated, user)
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAccounts(w, r, policy.ActionRead) {
		return
	}
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, r, http.StatusOK, user)
}

func (h *HTTPHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAccounts(w, r, policy.ActionUpdate) {
		return
	}
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	var req domain.UpdateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ApplyTo(user, policy.CanAssignRole(ActorFromContext(r.Context()), policy.ResourceAccount))
	h.saveUser(w, r, user)
}

func (h *HTTPHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAccounts(w, r, policy.ActionUpdate) {
		return
	}
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	var req domain.CreateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	applyFullUser(user, req)
	h.saveUser(w, r, user)
}

func (h *HTTPHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorizeAccounts(w, r, policy.ActionDelete) {
		return
	}
	username := mux.Vars(r)["username"]
	if err := h.stores.Users.Delete(ctx, username); err != nil {
		h.handleStoreError(w, r, err, "delete user")
		return
	}
	metrics.RecordContentWrite("user", "delete")
	h.logger.InfoContext(ctx, "Account deleted", slog.String("username", username))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

// Me serves /users/me: GET reads and PATCH edits the caller's own profile.
// The role field is never applied here.
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPatch, http.MethodDelete:
	default:
		h.methodNotAllowed(w, r)
		return
	}
	action := policy.ActionFromMethod(r.Method)
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(r.Context()), Action: action, Resource: policy.ResourceProfile}) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.respondJSON(w, r, http.StatusOK, userFromContext(r.Context()))
	case http.MethodPatch:
		h.updateMe(w, r)
	default:
		h.methodNotAllowed(w, r)
	}
}

func (h *HTTPHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	current := userFromContext(r.Context())
	if current == nil {
		h.respondError(w, r, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}
	var req domain.UpdateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user := *current
	if req.Role != nil {
		h.logger.InfoContext(r.Context(), "Ignoring role change on profile update", slog.String("username", user.Username))
	}
	req.ApplyTo(&user, policy.CanAssignRole(ActorFromContext(r.Context()), policy.ResourceProfile))
	h.saveUser(w, r, &user)
}

func (h *HTTPHandler) loadUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, err := h.stores.Users.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.handleStoreError(w, r, err, "load user")
		return nil, false
	}
	return user, true
}

func (h *HTTPHandler) saveUser(w http.ResponseWriter, r *http.Request, user *domain.User) {
	ctx := r.Context()
	if err := h.checkIdentityFree(ctx, user); err != nil {
		h.handleStoreError(w, r, err, "update user: uniqueness")
		return
	}
	if err := h.stores.Users.Update(ctx, user); err != nil {
		h.handleStoreError(w, r, err, "update user")
		return
	}
	metrics.RecordContentWrite("user", "update")
	h.logger.InfoContext(ctx, "Account updated", slog.String("userID", user.ID))
	h.respondJSON(w, r, http.StatusOK, user)
}

// checkIdentityFree reports a field error when another account already owns
// the username or (case-insensitively) the email of user.
func (h *HTTPHandler) checkIdentityFree(ctx context.Context, user *domain.User) error {
	other, err := h.stores.Users.GetByUsername(ctx, user.Username)
	switch {
	case err == nil && other.ID != user.ID:
		return validation.NewFieldError("username", "A user with that username already exists.")
	case err != nil && !errors.Is(err, store.ErrUserNotFound):
		return err
	}
	other, err = h.stores.Users.GetByEmail(ctx, user.Email)
	switch {
	case err == nil && other.ID != user.ID:
		return validation.NewFieldError("email", "A user with that email already exists.")
	case err != nil && !errors.Is(err, store.ErrUserNotFound):
		return err
	}
	return nil
}

func applyFullUser(user *domain.User, req domain.CreateUserRequest) {
	user.Username = req.Username
	user.Email = req.Email
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Bio = req.Bio
	user.Role = req.Role
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
}
