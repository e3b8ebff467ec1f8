// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process logger.
//
// The TUI owns stdout and stderr, so records go to a JSON log file under
// ~/.pdfchat/logs, rotated by size. Verbose CLI runs can mirror records to
// stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/lumberjack.v2"
)

// Options describes where and how much to log.
type Options struct {
	// File is the log file path. Empty disables file output.
	File string

	// Level is one of debug, info, warn, error.
	Level string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Stderr mirrors records to standard error.
	Stderr bool
}

// Logger bundles the configured slog logger with its adjustable level and
// the rotating file, which must be closed on exit.
type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	file  *lumberjack.Logger
}

// New builds a Logger from opts. With neither a file nor stderr output the
// logger discards everything.
func New(opts Options) (*Logger, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	var writers []io.Writer
	var file *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
		}
		writers = append(writers, file)
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(h), level: level, file: file}, nil
}

// Init builds a Logger and installs it as the slog default.
func Init(opts Options) (*Logger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l.Logger)
	l.Debug("logger initialized", "level", opts.Level, "file", opts.File)
	return l, nil
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(s string) {
	l.level.Set(ParseLevel(s))
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ParseLevel maps a level name to an slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
