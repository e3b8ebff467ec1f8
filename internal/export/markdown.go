// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/storage"
)

// MarkdownExporter renders transcripts as Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter. nil means DefaultOptions.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders conv.
func (e *MarkdownExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.Summary))
		if conv.Username != "" {
			fmt.Fprintf(&sb, "user: %s\n", escapeYAML(conv.Username))
		}
		if conv.Server != "" {
			fmt.Fprintf(&sb, "server: %s\n", escapeYAML(conv.Server))
		}
		if conv.FileID != "" {
			fmt.Fprintf(&sb, "file_id: %s\n", escapeYAML(conv.FileID))
		}
		fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(conv.Messages))
		sb.WriteString("generator: pdfchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Summary))

	for _, m := range conv.Messages {
		header := "**" + roleLabel(m.Role) + "**"
		if e.options.IncludeTimestamps && !m.Timestamp.IsZero() {
			header += " (" + formatShortTimestamp(m.Timestamp) + ")"
		}
		sb.WriteString(header + ":\n\n")
		if m.Failed {
			sb.WriteString("> ")
			sb.WriteString(strings.ReplaceAll(m.Content, "\n", "\n> "))
		} else {
			sb.WriteString(m.Content)
		}
		sb.WriteString("\n\n---\n\n")
	}
	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the Markdown MIME type.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// escapeYAML quotes s as a YAML double-quoted scalar.
func escapeYAML(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// escapeMarkdown neutralizes characters that would start Markdown syntax
// in a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := strings.NewReplacer(`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "#", `\#`, "<", `\<`, ">", `\>`)
	return r.Replace(s)
}
