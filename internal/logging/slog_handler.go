package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler implements slog.Handler with zerolog as the backend. Records
// logged with a context carrying a request ID get a request_id field.
type SlogHandler struct {
	logger zerolog.Logger
	attrs  []boundAttr
	groups []string
}

// boundAttr remembers the groups that were open when the attribute was added.
type boundAttr struct {
	attr   slog.Attr
	groups []string
}

// NewSlogHandler wraps a zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandler(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= slogToZerologLevel(level)
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(ctx context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))
	if event == nil {
		return nil
	}
	if !record.Time.IsZero() {
		event = event.Time(zerolog.TimestampFieldName, record.Time)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		event = event.Str("request_id", id)
	}
	for _, b := range h.attrs {
		event = addAttr(event, b.attr, b.groups)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = addAttr(event, attr, h.groups)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]boundAttr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, boundAttr{attr: a, groups: h.groups})
	}
	return &SlogHandler{logger: h.logger, attrs: newAttrs, groups: h.groups}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name
	return &SlogHandler{logger: h.logger, attrs: h.attrs, groups: newGroups}
}

func addAttr(event *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return event
	}
	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	case slog.KindGroup:
		nested := make([]string, len(groups), len(groups)+1)
		copy(nested, groups)
		if attr.Key != "" {
			nested = append(nested, attr.Key)
		}
		for _, ga := range attr.Value.Group() {
			event = addAttr(event, ga, nested)
		}
		return event
	default:
		if err, ok := attr.Value.Any().(error); ok {
			return event.AnErr(key, err)
		}
		return event.Interface(key, attr.Value.Any())
	}
}

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
