// Package logging builds the structured loggers used across the navigator.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log level and, optionally, a rotating log file.
type Config struct {
	Level      string `mapstructure:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// DefaultConfig logs at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  32,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// Logger is a slog.Logger that owns its output file, if any.
type Logger struct {
	*slog.Logger
	LogFile string

	file *lumberjack.Logger
}

// ParseLevel maps a level name to a slog.Level. The empty string is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
}

// New returns a logger for cfg. With a file configured, records are written
// as JSON to a rotating file; otherwise as text to stderr.
func New(cfg Config, stderr io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if cfg.File == "" {
		return &Logger{Logger: slog.New(slog.NewTextHandler(stderr, opts))}, nil
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &Logger{
		Logger:  slog.New(slog.NewJSONHandler(w, opts)),
		LogFile: w.Filename,
		file:    w,
	}, nil
}

// Close closes the log file. It is a no-op for stderr loggers.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
