// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/storage"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to one output format.
type Exporter interface {
	Export(conv *storage.StoredConversation) ([]byte, error)

	// FileExtension returns the extension with its dot, e.g. ".md".
	FileExtension() string

	MimeType() string
}

// Formats lists the accepted format names.
var Formats = []string{"md", "html", "json"}

// ErrEmpty is returned for a transcript without messages.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures Markdown and HTML output.
type Options struct {
	// IncludeMetadata adds the header block (user, server, dates).
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Theme is "light" or "dark" for HTML.
	Theme string
}

// DefaultOptions returns the options used when nil is passed.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// ForFormat returns the exporter for name: md (or markdown), html or json.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "md", "markdown", "":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q (want %s)", name, strings.Join(Formats, ", "))
}

// Filename suggests a file name for conv in the exporter's format.
func Filename(conv *storage.StoredConversation, exp Exporter) string {
	return "pdfchat_" + sanitizeFilename(conv.Summary) + "_" +
		conv.CreatedAt.Format("20060102_150405") + exp.FileExtension()
}

func validate(conv *storage.StoredConversation) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return ErrEmpty
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// any platform and caps the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Assistant"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Local().Format("15:04")
}
