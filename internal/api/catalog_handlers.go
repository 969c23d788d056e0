// review-service/internal/api/catalog_handlers.go
package api

import (
	"log/slog"
	"net/http"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/policy"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	items, total, err := h.stores.Categories.List(r.Context(), params)
	if err != nil {
		h.handleStoreError(w, r, err, "list categories")
		return
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(items, total, params))
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionCreate, Resource: policy.ResourceCategory}) {
		return
	}

	var req domain.CatalogEntryRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	category := &domain.Category{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug}
	if err := h.stores.Categories.Create(ctx, category); err != nil {
		h.handleStoreError(w, r, err, "create category")
		return
	}

	metrics.RecordContentWrite("category", "create")
	h.logger.InfoContext(ctx, "Category created", slog.String("slug", category.Slug))
	h.respondJSON(w, r, http.StatusCreated, category)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionDelete, Resource: policy.ResourceCategory}) {
		return
	}

	slug := mux.Vars(r)["slug"]
	if err := h.stores.Categories.Delete(ctx, slug); err != nil {
		h.handleStoreError(w, r, err, "delete category")
		return
	}

	metrics.RecordContentWrite("category", "delete")
	h.logger.InfoContext(ctx, "Category deleted", slog.String("slug", slug))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	items, total, err := h.stores.Genres.List(r.Context(), params)
	if err != nil {
		h.handleStoreError(w, r, err, "list genres")
		return
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(items, total, params))
}

func (h *HTTPHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionCreate, Resource: policy.ResourceGenre}) {
		return
	}

	var req domain.CatalogEntryRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	genre := &domain.Genre{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug}
	if err := h.stores.Genres.Create(ctx, genre); err != nil {
		h.handleStoreError(w, r, err, "create genre")
		return
	}

	metrics.RecordContentWrite("genre", "create")
	h.logger.InfoContext(ctx, "Genre created", slog.String("slug", genre.Slug))
	h.respondJSON(w, r, http.StatusCreated, genre)
}

func (h *HTTPHandler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionDelete, Resource: policy.ResourceGenre}) {
		return
	}

	slug := mux.Vars(r)["slug"]
	if err := h.stores.Genres.Delete(ctx, slug); err != nil {
		h.handleStoreError(w, r, err, "delete genre")
		return
	}

	metrics.RecordContentWrite("genre", "delete")
	h.logger.InfoContext(ctx, "Genre deleted", slog.String("slug", slug))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}
