// review-service/internal/api/title_handlers.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/policy"
	"review-service/internal/store"
	"review-service/internal/validation"

	"github.com/google/uuid"
)

const titleNotFound = "Title not found"

func (h *HTTPHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	page, ok := h.listParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	params := store.TitleListParams{
		ListParams: page,
		Category:   q.Get("category"),
		Genre:      q.Get("genre"),
		Name:       q.Get("name"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.respondFieldError(w, r, "year", "Enter a whole number.")
			return
		}
		params.Year = &year
	}

	titles, total, err := h.stores.Titles.List(r.Context(), params)
	if err != nil {
		h.handleStoreError(w, r, err, "list titles")
		return
	}
	views := make([]domain.TitleReadView, 0, len(titles))
	for _, t := range titles {
		views = append(views, t.ReadView())
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(views, total, page))
}

func (h *HTTPHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "title_id", titleNotFound)
	if !ok {
		return
	}
	title, err := h.stores.Titles.GetByID(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, r, err, "get title")
		return
	}
	h.respondJSON(w, r, http.StatusOK, title.ReadView())
}

func (h *HTTPHandler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionCreate, Resource: policy.ResourceTitle}) {
		return
	}

	var req domain.CreateTitleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	title := &domain.Title{ID: uuid.NewString()}
	if err := h.applyFullTitle(ctx, title, req); err != nil {
		h.handleStoreError(w, r, err, "create title: resolve relations")
		return
	}
	if err := h.stores.Titles.Create(ctx, title); err != nil {
		h.handleStoreError(w, r, err, "create title")
		return
	}

	metrics.RecordContentWrite("title", "create")
	h.logger.InfoContext(ctx, "Title created", slog.String("titleID", title.ID), slog.String("name", title.Name))
	h.respondJSON(w, r, http.StatusCreated, title.WriteView())
}

// PutTitle replaces every writable field of a title.
func (h *HTTPHandler) PutTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionUpdate, Resource: policy.ResourceTitle}) {
		return
	}
	title, ok := h.loadTitle(w, r)
	if !ok {
		return
	}

	var req domain.CreateTitleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.applyFullTitle(ctx, title, req); err != nil {
		h.handleStoreError(w, r, err, "update title: resolve relations")
		return
	}
	h.saveTitle(w, r, title)
}

// PatchTitle applies only the fields present in the payload.
func (h *HTTPHandler) PatchTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionUpdate, Resource: policy.ResourceTitle}) {
		return
	}
	title, ok := h.loadTitle(w, r)
	if !ok {
		return
	}

	var req domain.UpdateTitleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.Name != nil {
		title.Name = *req.Name
	}
	if req.Year != nil {
		title.Year = *req.Year
	}
	if req.Description != nil {
		title.Description = req.Description
	}
	if req.Category != nil {
		category, err := h.resolveCategory(ctx, *req.Category)
		if err != nil {
			h.handleStoreError(w, r, err, "patch title: resolve category")
			return
		}
		title.Category = category
		title.CategoryID = &category.ID
	}
	if req.Genre != nil {
		genres, err := h.resolveGenres(ctx, *req.Genre)
		if err != nil {
			h.handleStoreError(w, r, err, "patch title: resolve genres")
			return
		}
		setGenres(title, genres)
	}
	h.saveTitle(w, r, title)
}

func (h *HTTPHandler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorize(w, r, policy.Request{Actor: ActorFromContext(ctx), Action: policy.ActionDelete, Resource: policy.ResourceTitle}) {
		return
	}
	id, ok := h.pathID(w, r, "title_id", titleNotFound)
	if !ok {
		return
	}
	if err := h.stores.Titles.Delete(ctx, id); err != nil {
		h.handleStoreError(w, r, err, "delete title")
		return
	}

	metrics.RecordContentWrite("title", "delete")
	h.logger.InfoContext(ctx, "Title deleted", slog.String("titleID", id))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

func (h *HTTPHandler) loadTitle(w http.ResponseWriter, r *http.Request) (*domain.Title, bool) {
	id, ok := h.pathID(w, r, "title_id", titleNotFound)
	if !ok {
		return nil, false
	}
	title, err := h.stores.Titles.GetByID(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, r, err, "load title")
		return nil, false
	}
	return title, true
}

func (h *HTTPHandler) saveTitle(w http.ResponseWriter, r *http.Request, title *domain.Title) {
	ctx := r.Context()
	if err := h.stores.Titles.Update(ctx, title); err != nil {
		h.handleStoreError(w, r, err, "update title")
		return
	}
	metrics.RecordContentWrite("title", "update")
	h.logger.InfoContext(ctx, "Title updated", slog.String("titleID", title.ID))
	h.respondJSON(w, r, http.StatusOK, title.WriteView())
}

func (h *HTTPHandler) applyFullTitle(ctx context.Context, title *domain.Title, req domain.CreateTitleRequest) error {
	category, err := h.resolveCategory(ctx, req.Category)
	if err != nil {
		return err
	}
	genres, err := h.resolveGenres(ctx, req.Genre)
	if err != nil {
		return err
	}
	title.Name = req.Name
	title.Year = *req.Year
	title.Description = req.Description
	title.Category = category
	title.CategoryID = &category.ID
	setGenres(title, genres)
	return nil
}

// resolveCategory turns a category slug into the stored category. An
// unknown slug is a field error on "category", not a 404.
func (h *HTTPHandler) resolveCategory(ctx context.Context, slug string) (*domain.Category, error) {
	category, err := h.stores.Categories.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrCategoryNotFound) {
		return nil, validation.NewFieldError("category", fmt.Sprintf("Object with slug=%s does not exist.", slug))
	}
	return category, err
}

func (h *HTTPHandler) resolveGenres(ctx context.Context, slugs []string) ([]domain.Genre, error) {
	if len(slugs) == 0 {
		return []domain.Genre{}, nil
	}
	genres, err := h.stores.Genres.GetBySlugs(ctx, slugs)
	if errors.Is(err, store.ErrGenreNotFound) {
		return nil, validation.NewFieldError("genre", "One or more genre slugs do not exist.")
	}
	return genres, err
}

func setGenres(title *domain.Title, genres []domain.Genre) {
	title.Genres = genres
	title.GenreIDs = make([]string, 0, len(genres))
	for _, g := range genres {
		title.GenreIDs = append(title.GenreIDs, g.ID)
	}
}
