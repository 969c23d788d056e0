package store

import (
	"context"
	"errors"
	"fmt"

	"review-service/internal/domain"
)

// Base errors. Entity errors wrap one of these so callers can test either
// the specific or the general case with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrGenreNotFound    = fmt.Errorf("genre %w", ErrNotFound)
	ErrTitleNotFound    = fmt.Errorf("title %w", ErrNotFound)
	ErrReviewNotFound   = fmt.Errorf("review %w", ErrNotFound)
	ErrCommentNotFound  = fmt.Errorf("comment %w", ErrNotFound)

	ErrUserAlreadyExists = fmt.Errorf("user with this username or email %w", ErrAlreadyExists)
	ErrSlugAlreadyExists = fmt.Errorf("object with this slug %w", ErrAlreadyExists)
	ErrDuplicateReview   = fmt.Errorf("review by this author for this title %w", ErrAlreadyExists)

	// ErrInvalidReference is returned when a foreign key points nowhere.
	ErrInvalidReference = errors.New("referenced object does not exist")

	// ErrCodeConsumed is returned when the confirmation code was replaced or
	// already redeemed by the time it is consumed.
	ErrCodeConsumed = errors.New("confirmation code is no longer valid")
)

// ListParams pages and filters list queries. Page is 1-based.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
}

// Offset is the number of rows skipped before the current page.
func (p ListParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// TitleListParams adds the title filters. Year is ignored when nil.
type TitleListParams struct {
	ListParams
	Category string // category slug
	Genre    string // genre slug
	Name     string // case-insensitive substring
	Year     *int
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, params ListParams) ([]*domain.User, int, error)
	Update(ctx context.Context, user *domain.User) error
	SetConfirmationCode(ctx context.Context, userID string, hash *string) error
	// ConsumeConfirmationCode clears the stored code only while it still
	// equals hash, so a code can be redeemed once.
	ConsumeConfirmationCode(ctx context.Context, userID, hash string) error
	Delete(ctx context.Context, username string) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	Create(ctx context.Context, category *domain.Category) error
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	// List searches name and slug.
	List(ctx context.Context, params ListParams) ([]*domain.Category, int, error)
	Delete(ctx context.Context, slug string) error
}

// GenreStore persists genres.
type GenreStore interface {
	Create(ctx context.Context, genre *domain.Genre) error
	GetBySlug(ctx context.Context, slug string) (*domain.Genre, error)
	// GetBySlugs fails with ErrGenreNotFound unless every slug exists.
	GetBySlugs(ctx context.Context, slugs []string) ([]domain.Genre, error)
	// List searches name.
	List(ctx context.Context, params ListParams) ([]*domain.Genre, int, error)
	Delete(ctx context.Context, slug string) error
}

// TitleStore persists titles and their genre links. Reads fill Category,
// Genres and Rating.
type TitleStore interface {
	Create(ctx context.Context, title *domain.Title) error
	GetByID(ctx context.Context, id string) (*domain.Title, error)
	List(ctx context.Context, params TitleListParams) ([]*domain.Title, int, error)
	Update(ctx context.Context, title *domain.Title) error
	Delete(ctx context.Context, id string) error
}

// ReviewStore persists reviews. Lookups are scoped to the parent title.
type ReviewStore interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, titleID, reviewID string) (*domain.Review, error)
	ExistsForAuthor(ctx context.Context, titleID, authorID string) (bool, error)
	ListByTitle(ctx context.Context, titleID string, params ListParams) ([]*domain.Review, int, error)
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, titleID, reviewID string) error
}

// CommentStore persists comments. Lookups are scoped to the parent review.
type CommentStore interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, reviewID, commentID string) (*domain.Comment, error)
	ListByReview(ctx context.Context, reviewID string, params ListParams) ([]*domain.Comment, int, error)
	Update(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, reviewID, commentID string) error
}

// Stores bundles every store the API needs.
type Stores struct {
	Users      UserStore
	Categories CategoryStore
	Genres     GenreStore
	Titles     TitleStore
	Reviews    ReviewStore
	Comments   CommentStore
}
