// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// Header is the top bar: title, tabs, file count and the signed-in user.
type Header struct {
	theme  *styles.Theme
	width  int
	user   string
	files  int
	tabs   []string
	active int
}

// NewHeader creates a header.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{theme: theme}
}

// SetTheme swaps the theme.
func (h *Header) SetTheme(theme *styles.Theme) { h.theme = theme }

// SetWidth sets the render width.
func (h *Header) SetWidth(w int) { h.width = w }

// SetUser sets the display name shown on the right.
func (h *Header) SetUser(name string) { h.user = name }

// SetFiles sets the number of files uploaded this session.
func (h *Header) SetFiles(n int) { h.files = n }

// SetTabs sets the tab labels and the active index.
func (h *Header) SetTabs(tabs []string, active int) {
	h.tabs = tabs
	h.active = active
}

// FilesLabel returns the upload counter text.
func FilesLabel(n int) string {
	if n == 1 {
		return "1 file uploaded"
	}
	return fmt.Sprintf("%d files uploaded", n)
}

// View renders the header.
func (h *Header) View() string {
	t := h.theme

	left := t.HeaderTitle.Render("pdfchat")
	if len(h.tabs) > 0 {
		rendered := make([]string, len(h.tabs))
		for i, tab := range h.tabs {
			if i == h.active {
				rendered[i] = t.TabActive.Render(tab)
			} else {
				rendered[i] = t.Tab.Render(tab)
			}
		}
		left += "  " + lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	}

	var right []string
	right = append(right, t.Badge.Render(FilesLabel(h.files)))
	if h.user != "" {
		right = append(right, t.HeaderSubtitle.Render(h.user))
	}
	rightStr := strings.Join(right, " ")

	inner := h.width - t.Header.GetHorizontalFrameSize()
	if inner <= 0 {
		return t.Header.Render(left + "  " + rightStr)
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if gap < 1 {
		rightStr = util.FitWidth(h.user, max(inner-lipgloss.Width(left)-1, 0))
		gap = inner - lipgloss.Width(left) - lipgloss.Width(rightStr)
		if gap < 1 {
			return t.Header.Width(h.width).Render(left)
		}
	}
	return t.Header.Width(h.width).Render(left + strings.Repeat(" ", gap) + rightStr)
}
