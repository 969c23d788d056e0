package domain

// Category groups titles (books, films, music...). Addressed by slug.
type Category struct {
	ID   string `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre is attached to titles many-to-many. Addressed by slug.
type Genre struct {
	ID   string `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// CatalogEntryRequest is the create payload shared by categories and genres.
type CatalogEntryRequest struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"required,max=50,slug"`
}
