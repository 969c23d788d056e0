// Package logging builds the service logger: the log/slog API on top of a
// zerolog writer, plus request-ID propagation through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and output format.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

// New returns a *slog.Logger writing through zerolog.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).Level(ParseLevel(opts.Level))
	return slog.New(NewSlogHandler(zl))
}

// ParseLevel maps a level name to zerolog; unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{}

// WithRequestID stores a request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
