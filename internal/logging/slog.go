// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Slog returns an *slog.Logger that forwards to the global zerolog
// logger. Used for libraries that want slog (the supervisor's event
// hook) so everything lands in one output.
func Slog() *slog.Logger {
	return slog.New(&slogBridge{})
}

type slogBridge struct {
	attrs []slog.Attr
	group string
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= Logger().GetLevel()
}

func (b *slogBridge) Handle(_ context.Context, rec slog.Record) error {
	// WithLevel has a pointer receiver; the logger must be addressable.
	l := Logger()
	ev := l.WithLevel(zerologLevel(rec.Level))
	// Stored attrs were already group-qualified by WithAttrs.
	for _, attr := range b.attrs {
		ev = ev.Interface(attr.Key, attr.Value.Any())
	}
	rec.Attrs(func(attr slog.Attr) bool {
		ev = ev.Interface(b.key(attr.Key), attr.Value.Any())
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	for _, attr := range attrs {
		merged = append(merged, slog.Attr{Key: b.key(attr.Key), Value: attr.Value})
	}
	return &slogBridge{attrs: merged, group: b.group}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	group := name
	if b.group != "" {
		group = b.group + "." + name
	}
	return &slogBridge{attrs: b.attrs, group: group}
}

func (b *slogBridge) key(k string) string {
	if b.group == "" {
		return k
	}
	return b.group + "." + k
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
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
