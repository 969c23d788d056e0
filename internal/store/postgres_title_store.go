// review-service/internal/store/postgres_title_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"review-service/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresTitleStore implements TitleStore for PostgreSQL.
type PostgresTitleStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresTitleStore creates a PostgresTitleStore on an open pool.
func NewPostgresTitleStore(db *sqlx.DB, logger *slog.Logger) *PostgresTitleStore {
	return &PostgresTitleStore{db: db, logger: logger}
}

type titleRow struct {
	domain.Title
	CategoryName sql.NullString `db:"category_name"`
	CategorySlug sql.NullString `db:"category_slug"`
}

type titleGenreRow struct {
	TitleID string `db:"title_id"`
	domain.Genre
}

const titleSelect = `SELECT t.id, t.name, t.year, t.description, t.category_id, t.created_at,
       c.name AS category_name, c.slug AS category_slug,
       (SELECT AVG(r.score)::float8 FROM reviews r WHERE r.title_id = t.id) AS rating
  FROM titles t
  LEFT JOIN categories c ON c.id = t.category_id`

// Create inserts a title and its genre links in one transaction.
func (s *PostgresTitleStore) Create(ctx context.Context, title *domain.Title) error {
	title.CreatedAt = time.Now().UTC()
	s.logger.DebugContext(ctx, "Executing Create title query", slog.String("titleID", title.ID))

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO titles (id, name, year, description, category_id, created_at)
                  VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, query,
			title.ID, title.Name, title.Year, title.Description, title.CategoryID, title.CreatedAt); err != nil {
			return err
		}
		return s.linkGenres(ctx, tx, title.ID, title.GenreIDs)
	})
	if err != nil {
		return s.mapWriteError(ctx, "create", title.ID, err)
	}
	s.logger.InfoContext(ctx, "Title created successfully in DB", slog.String("titleID", title.ID))
	return nil
}

// Update overwrites a title and replaces its genre links.
func (s *PostgresTitleStore) Update(ctx context.Context, title *domain.Title) error {
	s.logger.DebugContext(ctx, "Executing Update title query", slog.String("titleID", title.ID))

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `UPDATE titles SET name = $1, year = $2, description = $3, category_id = $4 WHERE id = $5`
		result, err := tx.ExecContext(ctx, query, title.Name, title.Year, title.Description, title.CategoryID, title.ID)
		if err != nil {
			return err
		}
		if err := expectOneRow(result, ErrTitleNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM title_genres WHERE title_id = $1`, title.ID); err != nil {
			return err
		}
		return s.linkGenres(ctx, tx, title.ID, title.GenreIDs)
	})
	if err != nil {
		return s.mapWriteError(ctx, "update", title.ID, err)
	}
	s.logger.InfoContext(ctx, "Title updated successfully in DB", slog.String("titleID", title.ID))
	return nil
}

func (s *PostgresTitleStore) linkGenres(ctx context.Context, tx *sqlx.Tx, titleID string, genreIDs []string) error {
	if len(genreIDs) == 0 {
		return nil
	}
	query := `INSERT INTO title_genres (title_id, genre_id)
              SELECT $1, g FROM unnest($2::uuid[]) AS g
              ON CONFLICT DO NOTHING`
	_, err := tx.ExecContext(ctx, query, titleID, pq.Array(genreIDs))
	return err
}

func (s *PostgresTitleStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PostgresTitleStore) mapWriteError(ctx context.Context, op, titleID string, err error) error {
	if errors.Is(err, ErrTitleNotFound) {
		return err
	}
	if code, constraint := pqCode(err); code == pgForeignKeyViolation {
		s.logger.WarnContext(ctx, "Title references a missing category or genre",
			slog.String("titleID", titleID), slog.String("constraint", constraint))
		return ErrInvalidReference
	}
	s.logger.ErrorContext(ctx, "Failed to "+op+" title in DB", slog.String("titleID", titleID), slog.String("error", err.Error()))
	return fmt.Errorf("failed to %s title: %w", op, err)
}

// GetByID returns a title with category, genres and rating.
func (s *PostgresTitleStore) GetByID(ctx context.Context, id string) (*domain.Title, error) {
	var row titleRow
	if err := s.db.GetContext(ctx, &row, titleSelect+` WHERE t.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTitleNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get title by ID from DB", slog.String("titleID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get title by ID: %w", err)
	}
	titles := []*domain.Title{row.toTitle()}
	if err := s.attachGenres(ctx, titles); err != nil {
		return nil, err
	}
	return titles[0], nil
}

// List returns titles matching every non-empty filter, ordered by name.
func (s *PostgresTitleStore) List(ctx context.Context, params TitleListParams) ([]*domain.Title, int, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if params.Category != "" {
		add("c.slug = $%d", params.Category)
	}
	if params.Genre != "" {
		add(`EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
                     WHERE tg.title_id = t.id AND g.slug = $%d)`, params.Genre)
	}
	if params.Name != "" {
		add("t.name ILIKE $%d", likePattern(params.Name))
	}
	if params.Year != nil {
		add("t.year = $%d", *params.Year)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id` + where
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count titles in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count titles: %w", err)
	}
	titles := []*domain.Title{}
	if total == 0 {
		return titles, 0, nil
	}

	query := titleSelect + where + fmt.Sprintf(" ORDER BY t.name, t.id LIMIT %d OFFSET %d", params.PageSize, params.Offset())
	s.logger.DebugContext(ctx, "Executing List titles query", slog.String("query", query))
	var rows []titleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list titles from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list titles: %w", err)
	}
	for i := range rows {
		titles = append(titles, rows[i].toTitle())
	}
	if err := s.attachGenres(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

// Delete removes a title. Its reviews, comments and genre links cascade.
func (s *PostgresTitleStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete title from DB", slog.String("titleID", id), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete title: %w", err)
	}
	if err := expectOneRow(result, ErrTitleNotFound); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Title deleted from DB", slog.String("titleID", id))
	return nil
}

func (s *PostgresTitleStore) attachGenres(ctx context.Context, titles []*domain.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]string, 0, len(titles))
	byID := make(map[string]*domain.Title, len(titles))
	for _, t := range titles {
		ids = append(ids, t.ID)
		byID[t.ID] = t
		t.Genres = []domain.Genre{}
	}

	query := `SELECT tg.title_id, g.id, g.name, g.slug
                FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
               WHERE tg.title_id = ANY($1)
               ORDER BY g.name, g.slug`
	var rows []titleGenreRow
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load title genres", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load title genres: %w", err)
	}
	for _, r := range rows {
		if t, ok := byID[r.TitleID]; ok {
			t.Genres = append(t.Genres, r.Genre)
			t.GenreIDs = append(t.GenreIDs, r.Genre.ID)
		}
	}
	return nil
}

func (r *titleRow) toTitle() *domain.Title {
	t := r.Title
	if r.CategoryID != nil && r.CategorySlug.Valid {
		t.Category = &domain.Category{ID: *r.CategoryID, Name: r.CategoryName.String, Slug: r.CategorySlug.String}
	}
	return &t
}
