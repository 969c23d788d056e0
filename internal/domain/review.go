// review-service/internal/domain/review.go
package domain

import (
	"time"
)

// Review is an account's scored opinion of a title. An account reviews a
// given title at most once.
type Review struct {
	ID       string    `json:"id" db:"id"`
	TitleID  string    `json:"title" db:"title_id"`
	Text     string    `json:"text" db:"text"`
	AuthorID string    `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"` // username, joined from users
	Score    int       `json:"score" db:"score"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

// Comment is a reply attached to a review.
type Comment struct {
	ID       string    `json:"id" db:"id"`
	ReviewID string    `json:"-" db:"review_id"`
	Text     string    `json:"text" db:"text"`
	AuthorID string    `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

// CreateReviewRequest is the body of POST and PUT on reviews. Title and
// author always come from the route and the caller, never the payload.
type CreateReviewRequest struct {
	Text  string `json:"text" validate:"required"`
	Score int    `json:"score" validate:"required,gte=1,lte=10"`
}

// UpdateReviewRequest is the body of PATCH on reviews.
type UpdateReviewRequest struct {
	Text  *string `json:"text,omitempty" validate:"omitempty,min=1"`
	Score *int    `json:"score,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// CommentRequest is the body of POST and PUT on comments.
type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// UpdateCommentRequest is the body of PATCH on comments.
type UpdateCommentRequest struct {
	Text *string `json:"text,omitempty" validate:"omitempty,min=1"`
}
