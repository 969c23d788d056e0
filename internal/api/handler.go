// review-service/internal/api/handler.go
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"review-service/internal/mailer"
	"review-service/internal/policy"
	"review-service/internal/store"
	"review-service/internal/validation"
	"review-service/pkg/auth"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Pinger is satisfied by *sqlx.DB; nil means the service runs on the
// in-memory stores.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options carries the settings handlers need from the service config.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	CodeLength      int
}

// HTTPHandler serves every /v1 endpoint.
type HTTPHandler struct {
	stores       *store.Stores
	logger       *slog.Logger
	tokenManager auth.TokenManager
	mailer       mailer.Sender
	db           Pinger
	opts         Options
}

func NewHTTPHandler(s *store.Stores, l *slog.Logger, tm auth.TokenManager, m mailer.Sender, db Pinger, opts Options) *HTTPHandler {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = 8
	}
	return &HTTPHandler{
		stores:       s,
		logger:       l,
		tokenManager: tm,
		mailer:       m,
		db:           db,
		opts:         opts,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type listResponse[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}

func newListResponse[T any](items []T, total int, p store.ListParams) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Count: total, Page: p.Page, PageSize: p.PageSize, Results: items}
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to encode JSON response", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, errorResponse{Error: message})
}

func (h *HTTPHandler) respondFieldError(w http.ResponseWriter, r *http.Request, field, message string) {
	h.respondValidation(w, r, validation.NewFieldError(field, message))
}

func (h *HTTPHandler) respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	h.respondJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Validation failed", Fields: verr.Fields()})
}

// handleStoreError maps store and validation errors onto HTTP statuses.
// Anything unrecognised is logged and reported as 500.
func (h *HTTPHandler) handleStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		h.respondValidation(w, r, verr)
	case errors.Is(err, store.ErrNotFound):
		h.respondError(w, r, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, store.ErrSlugAlreadyExists):
		h.respondFieldError(w, r, "slug", "An entry with this slug already exists.")
	case errors.Is(err, store.ErrDuplicateReview):
		h.respondFieldError(w, r, "non_field_errors", "You have already reviewed this title.")
	case errors.Is(err, store.ErrAlreadyExists):
		h.respondError(w, r, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, store.ErrInvalidReference):
		h.respondError(w, r, http.StatusBadRequest, "Referenced object does not exist")
	default:
		h.logger.ErrorContext(r.Context(), "Store operation failed", slog.String("op", op), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// decodeAndValidate reads a JSON body into dst and runs the struct rules.
// It writes the 400 response itself and reports whether to continue.
func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	ctx := r.Context()
	defer r.Body.Close()

	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		h.logger.InfoContext(ctx, "Request validation failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			h.respondValidation(w, r, verr)
		} else {
			h.respondError(w, r, http.StatusBadRequest, err.Error())
		}
		return false
	}
	return true
}

// listParams reads page, page_size and search from the query string.
// page_size is clamped to the configured maximum.
func (h *HTTPHandler) listParams(w http.ResponseWriter, r *http.Request) (store.ListParams, bool) {
	q := r.URL.Query()
	p := store.ListParams{Page: 1, PageSize: h.opts.DefaultPageSize, Search: q.Get("search")}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			h.respondFieldError(w, r, "page", "A valid positive integer is required.")
			return p, false
		}
		p.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			h.respondFieldError(w, r, "page_size", "A valid positive integer is required.")
			return p, false
		}
		p.PageSize = min(size, h.opts.MaxPageSize)
	}
	return p, true
}

// pathID returns the named route variable when it is a well-formed id.
// Malformed ids cannot match any row, so they answer 404.
func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request, name, notFound string) (string, bool) {
	raw := mux.Vars(r)[name]
	if _, err := uuid.Parse(raw); err != nil {
		h.respondError(w, r, http.StatusNotFound, notFound)
		return "", false
	}
	return raw, true
}

// authorize evaluates the access rules for req and writes 401 or 403 when
// they deny it.
func (h *HTTPHandler) authorize(w http.ResponseWriter, r *http.Request, req policy.Request) bool {
	switch decision := policy.Evaluate(req); decision {
	case policy.Allow:
		return true
	case policy.DenyUnauthenticated:
		h.respondError(w, r, http.StatusUnauthorized, "Authentication credentials were not provided")
	default:
		h.logger.InfoContext(r.Context(), "Request forbidden",
			slog.String("username", req.Actor.Username),
			slog.String("resource", req.Resource.String()),
			slog.String("action", req.Action.String()))
		h.respondError(w, r, http.StatusForbidden, "You do not have permission to perform this action")
	}
	return false
}

// Healthz reports liveness and, when backed by a database, its reachability.
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "store": "memory"})
		return
	}
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Database ping failed", slog.String("error", err.Error()))
		h.respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "store": "postgres"})
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "store": "postgres"})
}

func (h *HTTPHandler) notFound(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, http.StatusNotFound, "Not found")
}

func (h *HTTPHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed")
}
