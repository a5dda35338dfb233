// Package logger builds the structured loggers used across thumbs.
//
// Unlike a process-wide logger, every component receives its own
// *slog.Logger through its options; [Discard] is the default when none is
// given.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format names accepted by [Config.Format].
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// ErrInvalidLevel is returned for level strings other than DEBUG, INFO,
	// WARN and ERROR.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrInvalidFormat is returned for format strings other than text and json.
	ErrInvalidFormat = errors.New("invalid log format")
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR (case-insensitive); empty means INFO
	Format string // text, json; empty means text
}

// New returns a logger writing to w.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q (want text or json)", ErrInvalidFormat, cfg.Format)
	}
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or [Discard] when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}

	return l
}
