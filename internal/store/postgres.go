// review-service/internal/store/postgres.go
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes handled by the stores.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings a PostgreSQL connection pool.
func Connect(ctx context.Context, dbURL string, pool PoolOptions, logger *slog.Logger) (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, errors.New("DB connection string (dbURL) cannot be empty")
	}
	logger.Info("Attempting to connect to database", slog.String("dbURL_used", maskDBURL(dbURL)))

	db, err := sqlx.ConnectContext(ctx, "postgres", dbURL)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping PostgreSQL database", slog.String("error", err.Error()))
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL database.")
	return db, nil
}

// ApplySchema creates missing tables and indexes. Every statement is
// idempotent so it is safe on every start.
func ApplySchema(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	logger.Info("Applying database schema")
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		logger.Error("Failed to apply database schema", slog.String("error", err.Error()))
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// NewPostgresStores wires every PostgreSQL store onto one pool.
func NewPostgresStores(db *sqlx.DB, logger *slog.Logger) (*Stores, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	return &Stores{
		Users:      NewPostgresUserStore(db, logger),
		Categories: NewPostgresCategoryStore(db, logger),
		Genres:     NewPostgresGenreStore(db, logger),
		Titles:     NewPostgresTitleStore(db, logger),
		Reviews:    NewPostgresReviewStore(db, logger),
		Comments:   NewPostgresCommentStore(db, logger),
	}, nil
}

// maskDBURL hides the password so the URL can be logged.
func maskDBURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// pqCode returns the PostgreSQL error code and constraint of err, if any.
func pqCode(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// likePattern builds an ILIKE pattern for a substring search.
func likePattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
