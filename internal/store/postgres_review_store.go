// review-service/internal/store/postgres_review_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"review-service/internal/domain"

	"github.com/jmoiron/sqlx"
)

// PostgresReviewStore implements ReviewStore for PostgreSQL.
type PostgresReviewStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresReviewStore creates a PostgresReviewStore on an open pool.
func NewPostgresReviewStore(db *sqlx.DB, logger *slog.Logger) *PostgresReviewStore {
	return &PostgresReviewStore{db: db, logger: logger}
}

const reviewSelect = `SELECT r.id, r.title_id, r.text, r.author_id, u.username AS author, r.score, r.pub_date
  FROM reviews r JOIN users u ON u.id = r.author_id`

// Create inserts a review. The uq_review_title_author constraint turns a
// second review by the same author into ErrDuplicateReview, including
// when two requests race.
func (s *PostgresReviewStore) Create(ctx context.Context, review *domain.Review) error {
	query := `INSERT INTO reviews (id, title_id, author_id, text, score, pub_date)
              VALUES ($1, $2, $3, $4, $5, $6)`
	if review.PubDate.IsZero() {
		review.PubDate = time.Now().UTC()
	}

	s.logger.DebugContext(ctx, "Executing Create review query",
		slog.String("reviewID", review.ID),
		slog.String("titleID", review.TitleID),
		slog.String("authorID", review.AuthorID))

	_, err := s.db.ExecContext(ctx, query,
		review.ID, review.TitleID, review.AuthorID, review.Text, review.Score, review.PubDate)
	if err != nil {
		switch code, constraint := pqCode(err); {
		case code == pgUniqueViolation && constraint == "uq_review_title_author":
			s.logger.WarnContext(ctx, "Author has already reviewed this title (DB constraint)",
				slog.String("titleID", review.TitleID), slog.String("authorID", review.AuthorID))
			return ErrDuplicateReview
		case code == pgForeignKeyViolation:
			s.logger.WarnContext(ctx, "Review references a missing title or author", slog.String("constraint", constraint))
			return ErrInvalidReference
		}
		s.logger.ErrorContext(ctx, "Failed to create review in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create review: %w", err)
	}
	s.logger.InfoContext(ctx, "Review created successfully in DB", slog.String("reviewID", review.ID))
	return nil
}

// GetByID finds a review belonging to the given title.
func (s *PostgresReviewStore) GetByID(ctx context.Context, titleID, reviewID string) (*domain.Review, error) {
	var review domain.Review
	err := s.db.GetContext(ctx, &review, reviewSelect+` WHERE r.id = $1 AND r.title_id = $2`, reviewID, titleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get review by ID from DB", slog.String("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get review by ID: %w", err)
	}
	return &review, nil
}

// ExistsForAuthor reports whether authorID already reviewed titleID.
func (s *PostgresReviewStore) ExistsForAuthor(ctx context.Context, titleID, authorID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE title_id = $1 AND author_id = $2)`
	if err := s.db.GetContext(ctx, &exists, query, titleID, authorID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to check existing review", slog.String("error", err.Error()))
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return exists, nil
}

// ListByTitle returns the reviews of a title, newest first.
func (s *PostgresReviewStore) ListByTitle(ctx context.Context, titleID string, params ListParams) ([]*domain.Review, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reviews WHERE title_id = $1`, titleID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count reviews by titleID in DB", slog.String("titleID", titleID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count reviews by titleID: %w", err)
	}
	reviews := []*domain.Review{}
	if total == 0 {
		return reviews, 0, nil
	}

	query := reviewSelect + ` WHERE r.title_id = $1` +
		fmt.Sprintf(" ORDER BY r.pub_date DESC, r.id LIMIT %d OFFSET %d", params.PageSize, params.Offset())
	if err := s.db.SelectContext(ctx, &reviews, query, titleID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list reviews by titleID from DB", slog.String("titleID", titleID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list reviews by titleID: %w", err)
	}
	return reviews, total, nil
}

// Update overwrites the text and score. Title and author never change.
func (s *PostgresReviewStore) Update(ctx context.Context, review *domain.Review) error {
	query := `UPDATE reviews SET text = $1, score = $2 WHERE id = $3 AND title_id = $4`
	result, err := s.db.ExecContext(ctx, query, review.Text, review.Score, review.ID, review.TitleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update review in DB", slog.String("reviewID", review.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update review: %w", err)
	}
	if err := expectOneRow(result, ErrReviewNotFound); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Review updated successfully in DB", slog.String("reviewID", review.ID))
	return nil
}

// Delete removes a review and its comments.
func (s *PostgresReviewStore) Delete(ctx context.Context, titleID, reviewID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1 AND title_id = $2`, reviewID, titleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete review from DB", slog.String("reviewID", reviewID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if err := expectOneRow(result, ErrReviewNotFound); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Review deleted from DB", slog.String("reviewID", reviewID))
	return nil
}

// PostgresCommentStore implements CommentStore for PostgreSQL.
type PostgresCommentStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresCommentStore creates a PostgresCommentStore on an open pool.
func NewPostgresCommentStore(db *sqlx.DB, logger *slog.Logger) *PostgresCommentStore {
	return &PostgresCommentStore{db: db, logger: logger}
}

const commentSelect = `SELECT c.id, c.review_id, c.text, c.author_id, u.username AS author, c.pub_date
  FROM comments c JOIN users u ON u.id = c.author_id`

func (s *PostgresCommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	query := `INSERT INTO comments (id, review_id, author_id, text, pub_date) VALUES ($1, $2, $3, $4, $5)`
	if comment.PubDate.IsZero() {
		comment.PubDate = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query, comment.ID, comment.ReviewID, comment.AuthorID, comment.Text, comment.PubDate)
	if err != nil {
		if code, _ := pqCode(err); code == pgForeignKeyViolation {
			return ErrInvalidReference
		}
		s.logger.ErrorContext(ctx, "Failed to create comment in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	s.logger.InfoContext(ctx, "Comment created successfully in DB", slog.String("commentID", comment.ID))
	return nil
}

func (s *PostgresCommentStore) GetByID(ctx context.Context, reviewID, commentID string) (*domain.Comment, error) {
	var comment domain.Comment
	err := s.db.GetContext(ctx, &comment, commentSelect+` WHERE c.id = $1 AND c.review_id = $2`, commentID, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get comment by ID from DB", slog.String("commentID", commentID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get comment by ID: %w", err)
	}
	return &comment, nil
}

func (s *PostgresCommentStore) ListByReview(ctx context.Context, reviewID string, params ListParams) ([]*domain.Comment, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM comments WHERE review_id = $1`, reviewID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count comments", slog.String("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}
	comments := []*domain.Comment{}
	if total == 0 {
		return comments, 0, nil
	}
	query := commentSelect + ` WHERE c.review_id = $1` +
		fmt.Sprintf(" ORDER BY c.pub_date DESC, c.id LIMIT %d OFFSET %d", params.PageSize, params.Offset())
	if err := s.db.SelectContext(ctx, &comments, query, reviewID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list comments", slog.String("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

func (s *PostgresCommentStore) Update(ctx context.Context, comment *domain.Comment) error {
	result, err := s.db.ExecContext(ctx, `UPDATE comments SET text = $1 WHERE id = $2 AND review_id = $3`,
		comment.Text, comment.ID, comment.ReviewID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update comment in DB", slog.String("commentID", comment.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return expectOneRow(result, ErrCommentNotFound)
}

func (s *PostgresCommentStore) Delete(ctx context.Context, reviewID, commentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1 AND review_id = $2`, commentID, reviewID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete comment from DB", slog.String("commentID", commentID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectOneRow(result, ErrCommentNotFound)
}
