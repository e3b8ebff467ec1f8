// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Name is auto, dark or light.
	Name string

	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	Badge          lipgloss.Style
	Tab            lipgloss.Style
	TabActive      lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Pending        lipgloss.Style
	Failed         lipgloss.Style
	Timestamp      lipgloss.Style
	FileContext    lipgloss.Style

	// ==========================================================================
	// INPUT, STATUS BAR, TOASTS
	// ==========================================================================

	Input        lipgloss.Style
	InputFocused lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ToastInfo    lipgloss.Style
	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style

	// ==========================================================================
	// FORMS AND LISTS
	// ==========================================================================

	FormBox        lipgloss.Style
	FormTitle      lipgloss.Style
	FormLabel      lipgloss.Style
	FormHint       lipgloss.Style
	FormError      lipgloss.Style
	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	ListItem       lipgloss.Style
	ListSelected   lipgloss.Style

	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Spinner lipgloss.Style
}

// NewTheme builds a theme. Unknown names fall back to auto, which follows
// the terminal background.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	profile := termenv.ColorProfile()

	t := &Theme{Name: name, ColorProfile: profile}
	switch name {
	case ThemeDark:
		t.IsDark = true
	case ThemeLight:
		t.IsDark = false
	default:
		t.Name = ThemeAuto
		t.IsDark = termenv.HasDarkBackground()
	}
	t.build()
	return t
}

// Toggle returns the opposite fixed theme.
func (t *Theme) Toggle() *Theme {
	if t.IsDark {
		return NewTheme(ThemeLight)
	}
	return NewTheme(ThemeDark)
}

// color returns c unchanged for the auto theme and pinned otherwise.
func (t *Theme) color(c lipgloss.AdaptiveColor) lipgloss.TerminalColor {
	if t.Name == ThemeAuto {
		return c
	}
	return pin(c, t.IsDark)
}

func (t *Theme) build() {
	cyan, purple := t.color(Cyan), t.color(Purple)
	emerald, rose, amber := t.color(Emerald), t.color(Rose), t.color(Amber)
	text, secondary, muted := t.color(TextPrimary), t.color(TextSecondary), t.color(TextMuted)
	overlay, inverse, dim := t.color(Overlay), t.color(TextInverse), t.color(SurfaceDim)

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(secondary)
	t.Badge = lipgloss.NewStyle().Foreground(purple).Padding(0, 1)
	t.Tab = lipgloss.NewStyle().Foreground(secondary).Padding(0, 2)
	t.TabActive = lipgloss.NewStyle().Bold(true).Foreground(inverse).Background(cyan).Padding(0, 2)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(purple)
	t.MessageBody = lipgloss.NewStyle().Foreground(text).PaddingLeft(2)
	t.Pending = lipgloss.NewStyle().Italic(true).Foreground(amber).PaddingLeft(2)
	t.Failed = lipgloss.NewStyle().Foreground(rose).PaddingLeft(2)
	t.Timestamp = lipgloss.NewStyle().Foreground(muted)
	t.FileContext = lipgloss.NewStyle().Italic(true).Foreground(muted).PaddingLeft(2)

	t.Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(overlay).
		Padding(0, 1)
	t.InputFocused = t.Input.BorderForeground(cyan)
	t.StatusBar = lipgloss.NewStyle().Foreground(secondary).Background(dim).Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(cyan).Background(dim)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(muted).Background(dim)
	t.ToastInfo = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	t.ToastSuccess = lipgloss.NewStyle().Foreground(emerald).Bold(true)
	t.ToastError = lipgloss.NewStyle().Foreground(rose).Bold(true)

	t.FormBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cyan).
		Padding(1, 3).
		Width(52)
	t.FormTitle = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	t.FormLabel = lipgloss.NewStyle().Bold(true).Foreground(text)
	t.FormHint = lipgloss.NewStyle().Foreground(muted)
	t.FormError = lipgloss.NewStyle().Foreground(rose)
	t.Button = lipgloss.NewStyle().Bold(true).Foreground(inverse).Background(cyan).Padding(0, 2)
	t.ButtonDisabled = lipgloss.NewStyle().Foreground(muted).Background(overlay).Padding(0, 2)
	t.ListItem = lipgloss.NewStyle().Foreground(text).PaddingLeft(2)
	t.ListSelected = lipgloss.NewStyle().Bold(true).Foreground(purple).
		BorderStyle(lipgloss.ThickBorder()).BorderLeft(true).BorderForeground(purple).PaddingLeft(1)

	t.Muted = lipgloss.NewStyle().Foreground(muted)
	t.Success = lipgloss.NewStyle().Foreground(emerald)
	t.Error = lipgloss.NewStyle().Foreground(rose)
	t.Spinner = lipgloss.NewStyle().Foreground(purple)
}

// GlamourStyle names the glamour standard style matching the theme, or ""
// for the auto style.
func (t *Theme) GlamourStyle() string {
	switch t.Name {
	case ThemeDark:
		return "dark"
	case ThemeLight:
		return "light"
	default:
		return ""
	}
}
