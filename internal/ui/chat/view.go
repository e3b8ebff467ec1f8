// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	convo "github.com/jeranaias/pdfchat-tui/internal/chat"
)

// View renders the transcript and the input box.
func (m Model) View() string {
	box := m.theme.Input
	if m.input.Focused() {
		box = m.theme.InputFocused
	}
	return m.viewport.View() + "\n" + box.Render(m.input.View())
}

func (m *Model) bodyWidth() int {
	if m.width <= 0 {
		return 76
	}
	return max(m.width-4, 20)
}

func (m *Model) renderMessages() string {
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 && !m.opts.Compact {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderMessage(msg convo.Message) string {
	t := m.theme
	w := m.bodyWidth()

	label := t.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Role == convo.RoleUser {
		label = t.UserLabel.Render(msg.Role.DisplayName())
	}
	if m.opts.ShowTimestamps && !msg.Pending() && !msg.Timestamp.IsZero() {
		label += " " + t.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	}

	var body string
	switch {
	case msg.Pending():
		body = t.Pending.Render(m.spinner.View() + " Thinking...")
	case msg.Failed():
		body = t.Failed.Width(w).Render(msg.Content)
	case msg.Role == convo.RoleAssistant && m.opts.RenderMarkdown:
		body = m.markdown(msg)
	default:
		body = t.MessageBody.Width(w).Render(msg.Content)
	}

	out := label + "\n" + body
	if msg.FileContext != "" {
		out += "\n" + t.FileContext.Width(w).Render(msg.FileContext)
	}
	return out
}

// markdown renders an assistant reply with glamour, caching by message ID.
// Settled messages never change content, so the ID is a stable key.
func (m *Model) markdown(msg convo.Message) string {
	if out, ok := m.mdCache[msg.ID]; ok {
		return out
	}
	plain := m.theme.MessageBody.Width(m.bodyWidth()).Render(msg.Content)
	if m.mdFailed {
		return plain
	}
	if m.md == nil {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(m.bodyWidth())}
		if style := m.theme.GlamourStyle(); style != "" {
			opts = append(opts, glamour.WithStandardStyle(style))
		} else {
			opts = append(opts, glamour.WithAutoStyle())
		}
		r, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			m.mdFailed = true
			return plain
		}
		m.md = r
	}
	out, err := m.md.Render(msg.Content)
	if err != nil {
		return plain
	}
	out = strings.Trim(out, "\n")
	m.mdCache[msg.ID] = out
	return out
}
