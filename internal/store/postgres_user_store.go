// review-service/internal/store/postgres_user_store.go
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

// PostgresUserStore implements UserStore for PostgreSQL.
type PostgresUserStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

const userColumns = `id, username, email, first_name, last_name, bio, role, is_superuser,
	confirmation_code_hash, created_at, updated_at`

// NewPostgresUserStore creates a PostgresUserStore on an open pool.
func NewPostgresUserStore(db *sqlx.DB, logger *slog.Logger) *PostgresUserStore {
	return &PostgresUserStore{db: db, logger: logger}
}

// Create inserts a new user.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	s.logger.DebugContext(ctx, "Executing Create user query", slog.String("userID", user.ID), slog.String("username", user.Username))
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.Bio,
		user.Role, user.IsSuperuser, user.ConfirmationCodeHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if code, constraint := pqCode(err); code == pgUniqueViolation {
			s.logger.WarnContext(ctx, "User already exists (unique constraint violation in DB)",
				slog.String("username", user.Username),
				slog.String("constraint_name", constraint))
			return ErrUserAlreadyExists
		}
		s.logger.ErrorContext(ctx, "Failed to create user in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created successfully in DB", slog.String("userID", user.ID))
	return nil
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	var user domain.User
	if err := s.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get user from DB", slog.String("where", where), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID finds a user by primary key.
func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetByUsername finds a user by exact username.
func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getOne(ctx, "username = $1", username)
}

// GetByEmail finds a user by e-mail ignoring case.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, "lower(email) = lower($1)", email)
}

// List returns users ordered by username, optionally filtered by a
// username substring.
func (s *PostgresUserStore) List(ctx context.Context, params ListParams) ([]*domain.User, int, error) {
	where := ""
	args := []any{}
	if params.Search != "" {
		where = " WHERE username ILIKE $1"
		args = append(args, likePattern(params.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count users in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	users := []*domain.User{}
	if total == 0 {
		return users, 0, nil
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY username LIMIT %d OFFSET %d", params.PageSize, params.Offset())
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update overwrites the profile columns of an existing user.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET username = $1, email = $2, first_name = $3, last_name = $4,
              bio = $5, role = $6, updated_at = $7
              WHERE id = $8`
	user.UpdatedAt = time.Now().UTC()
	s.logger.DebugContext(ctx, "Executing Update user query", slog.String("userID", user.ID))
	result, err := s.db.ExecContext(ctx, query,
		user.Username, user.Email, user.FirstName, user.LastName, user.Bio, user.Role, user.UpdatedAt, user.ID)
	if err != nil {
		if code, constraint := pqCode(err); code == pgUniqueViolation {
			s.logger.WarnContext(ctx, "Update failed: username or email already exists (DB constraint)",
				slog.String("userID", user.ID), slog.String("constraint", constraint))
			return ErrUserAlreadyExists
		}
		s.logger.ErrorContext(ctx, "Failed to update user in DB", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result, ErrUserNotFound)
}

// SetConfirmationCode stores a new code hash, or clears it when hash is nil.
func (s *PostgresUserStore) SetConfirmationCode(ctx context.Context, userID string, hash *string) error {
	query := `UPDATE users SET confirmation_code_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, hash, time.Now().UTC(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store confirmation code", slog.String("userID", userID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to store confirmation code: %w", err)
	}
	return expectOneRow(result, ErrUserNotFound)
}

// ConsumeConfirmationCode clears the code hash if it is still the one given.
func (s *PostgresUserStore) ConsumeConfirmationCode(ctx context.Context, userID, hash string) error {
	query := `UPDATE users SET confirmation_code_hash = NULL, updated_at = $1
              WHERE id = $2 AND confirmation_code_hash = $3`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID, hash)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to consume confirmation code", slog.String("userID", userID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to consume confirmation code: %w", err)
	}
	return expectOneRow(result, ErrCodeConsumed)
}

// Delete removes a user by username. Reviews and comments cascade.
func (s *PostgresUserStore) Delete(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete user from DB", slog.String("username", username), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := expectOneRow(result, ErrUserNotFound); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "User deleted from DB", slog.String("username", username))
	return nil
}

// expectOneRow maps a zero-row result onto notFound.
func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
