// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a self-contained HTML page with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates an HTML exporter. nil means DefaultOptions.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

var (
	codeBlockRe  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
)

// Export renders conv.
func (e *HTMLExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	theme := "dark"
	if e.options.Theme == "light" {
		theme = "light"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(conv.Summary))
	sb.WriteString("<meta name=\"generator\" content=\"pdfchat\">\n")
	fmt.Fprintf(&sb, "<style>\n%s</style>\n", pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s\">\n<div class=\"container\">\n", theme)

	if e.options.IncludeMetadata {
		e.writeHeader(&sb, conv)
	}

	sb.WriteString("<main>\n")
	for i := range conv.Messages {
		e.writeMessage(&sb, &conv.Messages[i])
	}
	sb.WriteString("</main>\n")
	fmt.Fprintf(&sb, "<footer>Exported by pdfchat on %s</footer>\n", formatTimestamp(time.Now()))
	sb.WriteString("</div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string { return ".html" }

// MimeType returns the HTML MIME type.
func (e *HTMLExporter) MimeType() string { return "text/html" }

func (e *HTMLExporter) writeHeader(sb *strings.Builder, conv *storage.StoredConversation) {
	sb.WriteString("<header>\n")
	fmt.Fprintf(sb, "<h1>%s</h1>\n<dl>\n", html.EscapeString(conv.Summary))
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(sb, "<dt>%s</dt><dd>%s</dd>\n", k, html.EscapeString(v))
		}
	}
	row("User", conv.Username)
	row("Server", conv.Server)
	row("Document", conv.FileID)
	row("Started", formatTimestamp(conv.CreatedAt))
	row("Messages", fmt.Sprint(len(conv.Messages)))
	sb.WriteString("</dl>\n</header>\n")
}

func (e *HTMLExporter) writeMessage(sb *strings.Builder, m *storage.StoredMessage) {
	class := "message " + html.EscapeString(m.Role)
	if m.Failed {
		class += " failed"
	}
	fmt.Fprintf(sb, "<section class=\"%s\">\n<div class=\"role\">%s", class, html.EscapeString(roleLabel(m.Role)))
	if e.options.IncludeTimestamps && !m.Timestamp.IsZero() {
		fmt.Fprintf(sb, " <time datetime=\"%s\">%s</time>",
			m.Timestamp.Format(time.RFC3339), formatShortTimestamp(m.Timestamp))
	}
	sb.WriteString("</div>\n")
	sb.WriteString(formatContent(m.Content))
	if m.Failed && m.Reason != "" {
		fmt.Fprintf(sb, "<div class=\"reason\">%s</div>\n", html.EscapeString(m.Reason))
	}
	sb.WriteString("</section>\n")
}

// formatContent escapes content and turns fenced code blocks, inline code
// and blank-line separated paragraphs into HTML.
func formatContent(content string) string {
	var sb strings.Builder
	rest := content
	for {
		loc := codeBlockRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			writeParagraphs(&sb, rest)
			break
		}
		writeParagraphs(&sb, rest[:loc[0]])
		lang := rest[loc[2]:loc[3]]
		code := strings.TrimRight(rest[loc[4]:loc[5]], "\n")
		sb.WriteString("<div class=\"code-block\">")
		if lang != "" {
			fmt.Fprintf(&sb, "<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
		}
		fmt.Fprintf(&sb, "<pre><code>%s</code></pre></div>\n", html.EscapeString(code))
		rest = rest[loc[1]:]
	}
	return sb.String()
}

func writeParagraphs(sb *strings.Builder, text string) {
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRe.ReplaceAllString(escaped, "<code>$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(sb, "<p>%s</p>\n", escaped)
	}
}

const pageCSS = `:root { --bg:#1e1e2e; --fg:#cdd6f4; --muted:#6c7086; --card:#181825;
  --user:#22d3ee; --assistant:#a78bfa; --error:#fb7185; --code:#11111b; }
body.light { --bg:#ffffff; --fg:#1f2937; --muted:#9ca3af; --card:#f5f5f5;
  --user:#0891b2; --assistant:#7c3aed; --error:#e11d48; --code:#e5e5e5; }
body { margin:0; background:var(--bg); color:var(--fg);
  font:15px/1.6 -apple-system, "Segoe UI", Roboto, sans-serif; }
.container { max-width:860px; margin:0 auto; padding:2rem 1rem; }
header h1 { margin:0 0 .5rem; font-size:1.5rem; }
dl { display:grid; grid-template-columns:max-content 1fr; gap:.2rem 1rem; color:var(--muted); }
dd { margin:0; }
.message { background:var(--card); border-radius:8px; padding:.75rem 1rem; margin:1rem 0;
  border-left:3px solid var(--muted); }
.message.user { border-left-color:var(--user); }
.message.assistant { border-left-color:var(--assistant); }
.message.failed { border-left-color:var(--error); }
.role { font-weight:600; }
.user .role { color:var(--user); }
.assistant .role { color:var(--assistant); }
time { color:var(--muted); font-weight:400; font-size:.85em; margin-left:.5em; }
.reason { color:var(--error); font-size:.85em; }
.code-block { background:var(--code); border-radius:6px; margin:.5rem 0; overflow-x:auto; }
.code-lang { color:var(--muted); font-size:.75em; padding:.25rem .75rem 0; }
pre { margin:0; padding:.75rem; }
code { font-family:"JetBrains Mono", Menlo, Consolas, monospace; font-size:.9em; }
p code { background:var(--code); padding:.1em .3em; border-radius:3px; }
footer { color:var(--muted); font-size:.8em; text-align:center; margin-top:2rem; }
`
