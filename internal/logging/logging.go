// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the slog logger used across seekrun. All output
// passes through a handler that masks API keys and bearer tokens.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces any secret found in log output.
const RedactedPlaceholder = "[REDACTED]"

// =============================================================================
// LOGGER SETUP
// =============================================================================

// ParseLevel converts a config level name into an slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a text logger writing to w at the given level, wrapped in a
// RedactedHandler.
func New(w io.Writer, level slog.Level) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactedHandler(inner))
}

// Setup builds a logger from a level name, installs it as the slog default
// and returns it. Unknown names fall back to warn.
func Setup(w io.Writer, levelName string) *slog.Logger {
	level, err := ParseLevel(levelName)
	if err != nil {
		level = slog.LevelWarn
	}
	logger := New(w, level)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("falling back to warn level", "error", err)
	}
	return logger
}

// =============================================================================
// REDACTION
// =============================================================================

var sensitivePatterns = []*regexp.Regexp{
	// DeepSeek and OpenAI-style keys
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`),
	regexp.MustCompile(`(?i)(api[_-]?key=)[A-Za-z0-9_-]{8,}`),
}

// Redact replaces secrets in s with RedactedPlaceholder.
func Redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, RedactedPlaceholder)
	}
	return s
}

// sensitiveKeyParts are attribute-name words whose values are always masked.
var sensitiveKeyParts = map[string]bool{
	"authorization": true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
	"token":         true,
	"bearer":        true,
	"credential":    true,
}

// isSensitiveKey matches whole words of the key, so "api_key" and
// "auth_token" are masked while "max_tokens" is not.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if strings.Contains(strings.NewReplacer("_", "", "-", "").Replace(key), "apikey") {
		return true
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' }) {
		if sensitiveKeyParts[part] {
			return true
		}
	}
	return false
}

// RedactedHandler wraps an slog.Handler and masks secrets in messages and
// attribute values.
type RedactedHandler struct {
	inner slog.Handler
}

// NewRedactedHandler wraps inner.
func NewRedactedHandler(inner slog.Handler) *RedactedHandler {
	return &RedactedHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the record and passes it on.
func (h *RedactedHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactedHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactedHandler) WithGroup(name string) slog.Handler {
	return &RedactedHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactedPlaceholder)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Group(a.Key, redacted...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, Redact(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
