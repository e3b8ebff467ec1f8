// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
)

// ToastKind selects the toast's color and lifetime.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastError
)

// Duration returns how long a toast of this kind stays up.
func (k ToastKind) Duration() time.Duration {
	switch k {
	case ToastError:
		return 8 * time.Second
	case ToastSuccess:
		return 4 * time.Second
	default:
		return 6 * time.Second
	}
}

// Toast is a transient one-line notification.
type Toast struct {
	ID        int
	Kind      ToastKind
	Text      string
	CreatedAt time.Time
}

// ToastExpiredMsg asks the owner to drop toast ID.
type ToastExpiredMsg struct {
	ID int
}

// IsExpired reports whether the toast has outlived its kind's duration.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Kind.Duration()
}

// View renders the toast.
func (t Toast) View(theme *styles.Theme) string {
	switch t.Kind {
	case ToastError:
		return theme.ToastError.Render("✗ " + t.Text)
	case ToastSuccess:
		return theme.ToastSuccess.Render("✓ " + t.Text)
	default:
		return theme.ToastInfo.Render("• " + t.Text)
	}
}

// Toasts keeps the visible toasts, newest last.
type Toasts struct {
	items  []Toast
	nextID int
	now    func() time.Time
}

// NewToasts creates an empty toast stack.
func NewToasts() *Toasts {
	return &Toasts{now: time.Now}
}

// Push shows a toast and returns the command that expires it.
func (ts *Toasts) Push(kind ToastKind, text string) tea.Cmd {
	ts.nextID++
	t := Toast{ID: ts.nextID, Kind: kind, Text: text, CreatedAt: ts.now()}
	ts.items = append(ts.items, t)
	if len(ts.items) > 3 {
		ts.items = ts.items[len(ts.items)-3:]
	}
	id := t.ID
	return tea.Tick(kind.Duration(), func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: id}
	})
}

// Dismiss removes toast id.
func (ts *Toasts) Dismiss(id int) {
	for i, t := range ts.items {
		if t.ID == id {
			ts.items = append(ts.items[:i], ts.items[i+1:]...)
			return
		}
	}
}

// Prune drops every expired toast.
func (ts *Toasts) Prune() {
	now := ts.now()
	kept := ts.items[:0]
	for _, t := range ts.items {
		if !t.IsExpired(now) {
			kept = append(kept, t)
		}
	}
	ts.items = kept
}

// Items returns the visible toasts.
func (ts *Toasts) Items() []Toast {
	return append([]Toast(nil), ts.items...)
}

// View renders the newest toast, or "".
func (ts *Toasts) View(theme *styles.Theme) string {
	if len(ts.items) == 0 {
		return ""
	}
	return ts.items[len(ts.items)-1].View(theme)
}

// NotifyMsg asks the app to show a toast.
type NotifyMsg struct {
	Kind ToastKind
	Text string
}

// Notify returns a command that emits a NotifyMsg.
func Notify(kind ToastKind, text string) tea.Cmd {
	return func() tea.Msg { return NotifyMsg{Kind: kind, Text: text} }
}
