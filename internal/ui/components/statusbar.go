// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// Shortcut is one key hint in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: context on the left, key hints on the right.
type StatusBar struct {
	theme     *styles.Theme
	width     int
	context   string
	busy      bool
	shortcuts []Shortcut
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme}
}

// SetTheme swaps the theme.
func (s *StatusBar) SetTheme(theme *styles.Theme) { s.theme = theme }

// SetWidth sets the render width.
func (s *StatusBar) SetWidth(w int) { s.width = w }

// SetContext sets the left-hand text, e.g. the attached file.
func (s *StatusBar) SetContext(text string) { s.context = text }

// SetBusy marks a request in flight.
func (s *StatusBar) SetBusy(busy bool) { s.busy = busy }

// SetShortcuts replaces the key hints.
func (s *StatusBar) SetShortcuts(sc []Shortcut) { s.shortcuts = sc }

// View renders the bar. Hints are dropped from the end until it fits.
func (s *StatusBar) View() string {
	t := s.theme

	left := s.context
	if s.busy {
		if left != "" {
			left += " | "
		}
		left += "waiting for reply..."
	}

	sep := t.ShortcutDesc.Render("  ")
	hints := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		hints = append(hints, t.ShortcutKey.Render(sc.Key)+t.ShortcutDesc.Render(" "+sc.Desc))
	}

	inner := s.width - t.StatusBar.GetHorizontalFrameSize()
	if inner <= 0 {
		return t.StatusBar.Render(left + "  " + strings.Join(hints, sep))
	}

	right := strings.Join(hints, sep)
	for len(hints) > 0 && lipgloss.Width(left)+lipgloss.Width(right)+1 > inner {
		hints = hints[:len(hints)-1]
		right = strings.Join(hints, sep)
	}
	left = util.FitWidth(left, inner-lipgloss.Width(right)-1)
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 0)

	return t.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}
