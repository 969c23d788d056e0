// review-service/internal/store/postgres_catalog_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"review-service/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// catalogEntry is the row shape shared by categories and genres.
type catalogEntry struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

// catalogTable implements the slug-addressed operations for one table.
type catalogTable struct {
	db         *sqlx.DB
	logger     *slog.Logger
	table      string
	notFound   error
	searchSlug bool
}

func (t catalogTable) create(ctx context.Context, e catalogEntry) error {
	query := `INSERT INTO ` + t.table + ` (id, name, slug) VALUES ($1, $2, $3)`
	t.logger.DebugContext(ctx, "Executing Create catalog entry query", slog.String("table", t.table), slog.String("slug", e.Slug))
	if _, err := t.db.ExecContext(ctx, query, e.ID, e.Name, e.Slug); err != nil {
		if code, _ := pqCode(err); code == pgUniqueViolation {
			t.logger.WarnContext(ctx, "Slug already exists (DB constraint)", slog.String("table", t.table), slog.String("slug", e.Slug))
			return ErrSlugAlreadyExists
		}
		t.logger.ErrorContext(ctx, "Failed to create catalog entry in DB", slog.String("table", t.table), slog.String("error", err.Error()))
		return fmt.Errorf("failed to create %s entry: %w", t.table, err)
	}
	t.logger.InfoContext(ctx, "Catalog entry created in DB", slog.String("table", t.table), slog.String("slug", e.Slug))
	return nil
}

func (t catalogTable) getBySlug(ctx context.Context, slug string) (*catalogEntry, error) {
	var e catalogEntry
	query := `SELECT id, name, slug FROM ` + t.table + ` WHERE slug = $1`
	if err := t.db.GetContext(ctx, &e, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, t.notFound
		}
		t.logger.ErrorContext(ctx, "Failed to get catalog entry from DB", slog.String("table", t.table), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get %s entry: %w", t.table, err)
	}
	return &e, nil
}

func (t catalogTable) list(ctx context.Context, params ListParams) ([]catalogEntry, int, error) {
	where := ""
	args := []any{}
	if params.Search != "" {
		where = " WHERE name ILIKE $1"
		if t.searchSlug {
			where += " OR slug ILIKE $1"
		}
		args = append(args, likePattern(params.Search))
	}

	var total int
	if err := t.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+t.table+where, args...); err != nil {
		t.logger.ErrorContext(ctx, "Failed to count catalog entries", slog.String("table", t.table), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}
	entries := []catalogEntry{}
	if total == 0 {
		return entries, 0, nil
	}
	query := `SELECT id, name, slug FROM ` + t.table + where +
		fmt.Sprintf(" ORDER BY name, slug LIMIT %d OFFSET %d", params.PageSize, params.Offset())
	if err := t.db.SelectContext(ctx, &entries, query, args...); err != nil {
		t.logger.ErrorContext(ctx, "Failed to list catalog entries", slog.String("table", t.table), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	return entries, total, nil
}

func (t catalogTable) delete(ctx context.Context, slug string) error {
	result, err := t.db.ExecContext(ctx, `DELETE FROM `+t.table+` WHERE slug = $1`, slug)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to delete catalog entry", slog.String("table", t.table), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete %s entry: %w", t.table, err)
	}
	if err := expectOneRow(result, t.notFound); err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "Catalog entry deleted from DB", slog.String("table", t.table), slog.String("slug", slug))
	return nil
}

// PostgresCategoryStore implements CategoryStore. Deleting a category
// leaves its titles uncategorised.
type PostgresCategoryStore struct {
	catalogTable
}

// NewPostgresCategoryStore creates a PostgresCategoryStore. Search matches
// name or slug.
func NewPostgresCategoryStore(db *sqlx.DB, logger *slog.Logger) *PostgresCategoryStore {
	return &PostgresCategoryStore{catalogTable{db: db, logger: logger, table: "categories", notFound: ErrCategoryNotFound, searchSlug: true}}
}

func (s *PostgresCategoryStore) Create(ctx context.Context, c *domain.Category) error {
	return s.create(ctx, catalogEntry{ID: c.ID, Name: c.Name, Slug: c.Slug})
}

func (s *PostgresCategoryStore) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	e, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &domain.Category{ID: e.ID, Name: e.Name, Slug: e.Slug}, nil
}

func (s *PostgresCategoryStore) List(ctx context.Context, params ListParams) ([]*domain.Category, int, error) {
	entries, total, err := s.list(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Category, 0, len(entries))
	for _, e := range entries {
		out = append(out, &domain.Category{ID: e.ID, Name: e.Name, Slug: e.Slug})
	}
	return out, total, nil
}

func (s *PostgresCategoryStore) Delete(ctx context.Context, slug string) error {
	return s.delete(ctx, slug)
}

// PostgresGenreStore implements GenreStore. Deleting a genre detaches it
// from every title.
type PostgresGenreStore struct {
	catalogTable
}

func NewPostgresGenreStore(db *sqlx.DB, logger *slog.Logger) *PostgresGenreStore {
	return &PostgresGenreStore{catalogTable{db: db, logger: logger, table: "genres", notFound: ErrGenreNotFound}}
}

func (s *PostgresGenreStore) Create(ctx context.Context, g *domain.Genre) error {
	return s.create(ctx, catalogEntry{ID: g.ID, Name: g.Name, Slug: g.Slug})
}

func (s *PostgresGenreStore) GetBySlug(ctx context.Context, slug string) (*domain.Genre, error) {
	e, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &domain.Genre{ID: e.ID, Name: e.Name, Slug: e.Slug}, nil
}

func (s *PostgresGenreStore) GetBySlugs(ctx context.Context, slugs []string) ([]domain.Genre, error) {
	genres := []domain.Genre{}
	if len(slugs) == 0 {
		return genres, nil
	}
	query := `SELECT id, name, slug FROM genres WHERE slug = ANY($1) ORDER BY name, slug`
	if err := s.db.SelectContext(ctx, &genres, query, pq.Array(slugs)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to get genres by slug", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get genres: %w", err)
	}
	if len(genres) != len(uniqueStrings(slugs)) {
		return nil, ErrGenreNotFound
	}
	return genres, nil
}

func (s *PostgresGenreStore) List(ctx context.Context, params ListParams) ([]*domain.Genre, int, error) {
	entries, total, err := s.list(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Genre, 0, len(entries))
	for _, e := range entries {
		out = append(out, &domain.Genre{ID: e.ID, Name: e.Name, Slug: e.Slug})
	}
	return out, total, nil
}

func (s *PostgresGenreStore) Delete(ctx context.Context, slug string) error {
	return s.delete(ctx, slug)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
