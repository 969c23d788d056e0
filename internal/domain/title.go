// review-service/internal/domain/title.go
package domain

import (
	"time"
)

// Title is a reviewable work. Category and Genres are populated by the store
// on reads; Rating is the mean review score and stays nil without reviews.
type Title struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Year        int       `db:"year"`
	Description *string   `db:"description"`
	CategoryID  *string   `db:"category_id"`
	GenreIDs    []string  `db:"-"`
	Category    *Category `db:"-"`
	Genres      []Genre   `db:"-"`
	Rating      *float64  `db:"rating"`
	CreatedAt   time.Time `db:"created_at"`
}

// TitleReadView is the representation returned by list and retrieve.
type TitleReadView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    *Category `json:"category"`
	Genre       []Genre   `json:"genre"`
	Description *string   `json:"description"`
	Year        int       `json:"year"`
	Rating      *float64  `json:"rating"`
}

// TitleWriteView is the representation returned by create and update:
// related objects are referenced by slug, the same way they are written.
type TitleWriteView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Year        int      `json:"year"`
	Description *string  `json:"description"`
	Genre       []string `json:"genre"`
	Category    *string  `json:"category"`
}

// ReadView renders t for read endpoints.
func (t *Title) ReadView() TitleReadView {
	genres := t.Genres
	if genres == nil {
		genres = []Genre{}
	}
	return TitleReadView{
		ID:          t.ID,
		Name:        t.Name,
		Category:    t.Category,
		Genre:       genres,
		Description: t.Description,
		Year:        t.Year,
		Rating:      t.Rating,
	}
}

// WriteView renders t for write endpoints.
func (t *Title) WriteView() TitleWriteView {
	slugs := make([]string, 0, len(t.Genres))
	for _, g := range t.Genres {
		slugs = append(slugs, g.Slug)
	}
	var category *string
	if t.Category != nil {
		slug := t.Category.Slug
		category = &slug
	}
	return TitleWriteView{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Description: t.Description,
		Genre:       slugs,
		Category:    category,
	}
}

// CreateTitleRequest is the body of POST and PUT /v1/titles.
type CreateTitleRequest struct {
	Name        string   `json:"name" validate:"required,max=256"`
	Year        *int     `json:"year" validate:"required,min=0,notfuture"`
	Description *string  `json:"description"`
	Genre       []string `json:"genre" validate:"dive,slug"`
	Category    string   `json:"category" validate:"required,slug"`
}

// UpdateTitleRequest is the body of PATCH /v1/titles/{id}.
type UpdateTitleRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,max=256"`
	Year        *int      `json:"year,omitempty" validate:"omitempty,min=0,notfuture"`
	Description *string   `json:"description,omitempty"`
	Genre       *[]string `json:"genre,omitempty" validate:"omitempty,dive,slug"`
	Category    *string   `json:"category,omitempty" validate:"omitempty,slug"`
}
