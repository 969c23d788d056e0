// review-service/internal/api/review_handlers.go
package api

import (
	"log/slog"
	"net/http"

	"review-service/internal/domain"
	"review-service/internal/metrics"
	"review-service/internal/policy"

	"github.com/google/uuid"
)

const (
	reviewNotFound  = "Review not found"
	commentNotFound = "Comment not found"
)

// requireTitle resolves {title_id} to an existing title id.
func (h *HTTPHandler) requireTitle(w http.ResponseWriter, r *http.Request) (string, bool) {
	title, ok := h.loadTitle(w, r)
	if !ok {
		return "", false
	}
	return title.ID, true
}

// requireReview resolves {review_id} within {title_id}. A review under a
// different title is reported as missing.
func (h *HTTPHandler) requireReview(w http.ResponseWriter, r *http.Request) (*domain.Review, bool) {
	titleID, ok := h.requireTitle(w, r)
	if !ok {
		return nil, false
	}
	reviewID, ok := h.pathID(w, r, "review_id", reviewNotFound)
	if !ok {
		return nil, false
	}
	review, err := h.stores.Reviews.GetByID(r.Context(), titleID, reviewID)
	if err != nil {
		h.handleStoreError(w, r, err, "load review")
		return nil, false
	}
	return review, true
}

func (h *HTTPHandler) requireComment(w http.ResponseWriter, r *http.Request) (*domain.Comment, bool) {
	review, ok := h.requireReview(w, r)
	if !ok {
		return nil, false
	}
	commentID, ok := h.pathID(w, r, "comment_id", commentNotFound)
	if !ok {
		return nil, false
	}
	comment, err := h.stores.Comments.GetByID(r.Context(), review.ID, commentID)
	if err != nil {
		h.handleStoreError(w, r, err, "load comment")
		return nil, false
	}
	return comment, true
}

// requireAuthenticated rejects anonymous writes before any lookup, so that
// they answer 401 whether or not the target exists.
func (h *HTTPHandler) requireAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	if ActorFromContext(r.Context()).Authenticated() {
		return true
	}
	h.respondError(w, r, http.StatusUnauthorized, "Authentication credentials were not provided")
	return false
}

func (h *HTTPHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	titleID, ok := h.requireTitle(w, r)
	if !ok {
		return
	}
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	reviews, total, err := h.stores.Reviews.ListByTitle(r.Context(), titleID, params)
	if err != nil {
		h.handleStoreError(w, r, err, "list reviews")
		return
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(reviews, total, params))
}

// CreateReview posts the caller's review. One review per author and title:
// the pre-check gives a friendly error, the store constraint settles races.
func (h *HTTPHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := ActorFromContext(ctx)
	if !h.authorize(w, r, policy.Request{Actor: actor, Action: policy.ActionCreate, Resource: policy.ResourceReview}) {
		return
	}
	titleID, ok := h.requireTitle(w, r)
	if !ok {
		return
	}

	var req domain.CreateReviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	exists, err := h.stores.Reviews.ExistsForAuthor(ctx, titleID, actor.ID)
	if err != nil {
		h.handleStoreError(w, r, err, "create review: check duplicate")
		return
	}
	if exists {
		h.respondFieldError(w, r, "non_field_errors", "You have already reviewed this title.")
		return
	}

	review := &domain.Review{
		ID:       uuid.NewString(),
		TitleID:  titleID,
		Text:     req.Text,
		AuthorID: actor.ID,
		Author:   actor.Username,
		Score:    req.Score,
	}
	if err := h.stores.Reviews.Create(ctx, review); err != nil {
		h.logger.WarnContext(ctx, "Failed to create review", slog.String("titleID", titleID), slog.String("error", err.Error()))
		h.handleStoreError(w, r, err, "create review")
		return
	}

	metrics.RecordContentWrite("review", "create")
	h.logger.InfoContext(ctx, "Review created", slog.String("reviewID", review.ID), slog.String("titleID", titleID), slog.String("userID", actor.ID))
	h.respondJSON(w, r, http.StatusCreated, review)
}

func (h *HTTPHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.requireReview(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, r, http.StatusOK, review)
}

func (h *HTTPHandler) PatchReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.authorizedReview(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req domain.UpdateReviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Text != nil {
		review.Text = *req.Text
	}
	if req.Score != nil {
		review.Score = *req.Score
	}
	h.saveReview(w, r, review)
}

func (h *HTTPHandler) PutReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.authorizedReview(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req domain.CreateReviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	review.Text = req.Text
	review.Score = req.Score
	h.saveReview(w, r, review)
}

func (h *HTTPHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.authorizedReview(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.stores.Reviews.Delete(ctx, review.TitleID, review.ID); err != nil {
		h.handleStoreError(w, r, err, "delete review")
		return
	}
	metrics.RecordContentWrite("review", "delete")
	h.logger.InfoContext(ctx, "Review deleted", slog.String("reviewID", review.ID))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

// authorizedReview loads the addressed review and checks that the caller
// is its author or a moderator.
func (h *HTTPHandler) authorizedReview(w http.ResponseWriter, r *http.Request, action policy.Action) (*domain.Review, bool) {
	if !h.requireAuthenticated(w, r) {
		return nil, false
	}
	review, ok := h.requireReview(w, r)
	if !ok {
		return nil, false
	}
	req := policy.Request{Actor: ActorFromContext(r.Context()), Action: action, Resource: policy.ResourceReview, OwnerID: review.AuthorID}
	if !h.authorize(w, r, req) {
		return nil, false
	}
	return review, true
}

func (h *HTTPHandler) saveReview(w http.ResponseWriter, r *http.Request, review *domain.Review) {
	ctx := r.Context()
	if err := h.stores.Reviews.Update(ctx, review); err != nil {
		h.handleStoreError(w, r, err, "update review")
		return
	}
	metrics.RecordContentWrite("review", "update")
	h.logger.InfoContext(ctx, "Review updated", slog.String("reviewID", review.ID))
	h.respondJSON(w, r, http.StatusOK, review)
}

func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	review, ok := h.requireReview(w, r)
	if !ok {
		return
	}
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	comments, total, err := h.stores.Comments.ListByReview(r.Context(), review.ID, params)
	if err != nil {
		h.handleStoreError(w, r, err, "list comments")
		return
	}
	h.respondJSON(w, r, http.StatusOK, newListResponse(comments, total, params))
}

func (h *HTTPHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := ActorFromContext(ctx)
	if !h.authorize(w, r, policy.Request{Actor: actor, Action: policy.ActionCreate, Resource: policy.ResourceComment}) {
		return
	}
	review, ok := h.requireReview(w, r)
	if !ok {
		return
	}

	var req domain.CommentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	comment := &domain.Comment{
		ID:       uuid.NewString(),
		ReviewID: review.ID,
		Text:     req.Text,
		AuthorID: actor.ID,
		Author:   actor.Username,
	}
	if err := h.stores.Comments.Create(ctx, comment); err != nil {
		h.handleStoreError(w, r, err, "create comment")
		return
	}

	metrics.RecordContentWrite("comment", "create")
	h.logger.InfoContext(ctx, "Comment created", slog.String("commentID", comment.ID), slog.String("reviewID", review.ID))
	h.respondJSON(w, r, http.StatusCreated, comment)
}

func (h *HTTPHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.requireComment(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, r, http.StatusOK, comment)
}

func (h *HTTPHandler) PatchComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.authorizedComment(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req domain.UpdateCommentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Text != nil {
		comment.Text = *req.Text
	}
	h.saveComment(w, r, comment)
}

func (h *HTTPHandler) PutComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.authorizedComment(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req domain.CommentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	comment.Text = req.Text
	h.saveComment(w, r, comment)
}

func (h *HTTPHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.authorizedComment(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.stores.Comments.Delete(ctx, comment.ReviewID, comment.ID); err != nil {
		h.handleStoreError(w, r, err, "delete comment")
		return
	}
	metrics.RecordContentWrite("comment", "delete")
	h.logger.InfoContext(ctx, "Comment deleted", slog.String("commentID", comment.ID))
	h.respondJSON(w, r, http.StatusNoContent, nil)
}

func (h *HTTPHandler) authorizedComment(w http.ResponseWriter, r *http.Request, action policy.Action) (*domain.Comment, bool) {
	if !h.requireAuthenticated(w, r) {
		return nil, false
	}
	comment, ok := h.requireComment(w, r)
	if !ok {
		return nil, false
	}
	req := policy.Request{Actor: ActorFromContext(r.Context()), Action: action, Resource: policy.ResourceComment, OwnerID: comment.AuthorID}
	if !h.authorize(w, r, req) {
		return nil, false
	}
	return comment, true
}

func (h *HTTPHandler) saveComment(w http.ResponseWriter, r *http.Request, comment *domain.Comment) {
	ctx := r.Context()
	if err := h.stores.Comments.Update(ctx, comment); err != nil {
		h.handleStoreError(w, r, err, "update comment")
		return
	}
	metrics.RecordContentWrite("comment", "update")
	h.logger.InfoContext(ctx, "Comment updated", slog.String("commentID", comment.ID))
	h.respondJSON(w, r, http.StatusOK, comment)
}
