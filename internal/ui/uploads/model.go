// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package uploads is the file screen: upload a PDF by path, browse the
// server's files, attach one to the conversation or delete it.
package uploads

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/ui/components"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// Files runs the upload handler's operations as commands.
// *upload.Handler satisfies it.
type Files interface {
	UploadCmd(ctx context.Context, path string) tea.Cmd
	ListCmd(ctx context.Context) tea.Cmd
	DeleteCmd(ctx context.Context, id string) tea.Cmd
}

// Attacher holds the conversation's referenced file. *chat.Store
// satisfies it.
type Attacher interface {
	AttachFile(id string)
	AttachedFile() string
}

// AttachedMsg reports that a file was attached to the conversation. The
// app switches to the chat tab on it.
type AttachedMsg struct {
	ID   string
	Name string
}

type mode int

const (
	modeBrowse mode = iota
	modePath
	modeConfirmDelete
)

// Model is the uploads screen.
type Model struct {
	ctx    context.Context
	theme  *styles.Theme
	files  Files
	attach Attacher

	table   table.Model
	path    textinput.Model
	spinner spinner.Model

	list      []api.FileInfo
	mode      mode
	loading   bool
	uploading bool
	err       string
	width     int
	height    int
}

// New creates the uploads screen. Call Init to load the file list.
func New(ctx context.Context, theme *styles.Theme, files Files, attach Attacher) Model {
	m := Model{ctx: ctx, files: files, attach: attach}

	m.table = table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	m.path = textinput.New()
	m.path.Placeholder = "/path/to/document.pdf"
	m.path.Prompt = "Path: "
	m.path.CharLimit = 1024

	m.spinner = spinner.New(spinner.WithSpinner(spinner.MiniDot))
	m.SetTheme(theme)
	return m
}

func columns(width int) []table.Column {
	name := max(width-12-14-10-8, 16)
	return []table.Column{
		{Title: "", Width: 1},
		{Title: "Name", Width: name},
		{Title: "Size", Width: 10},
		{Title: "Uploaded", Width: 14},
		{Title: "ID", Width: 8},
	}
}

// SetTheme swaps the theme.
func (m *Model) SetTheme(theme *styles.Theme) {
	m.theme = theme
	m.spinner.Style = theme.Spinner
	m.path.PlaceholderStyle = theme.Muted
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(theme.HeaderTitle.GetForeground()).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
		BorderForeground(theme.Muted.GetForeground())
	s.Selected = s.Selected.Bold(true).Foreground(theme.ListSelected.GetForeground())
	m.table.SetStyles(s)
}

// SetSize lays the screen out in w by h cells.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.table.SetColumns(columns(w - 4))
	m.table.SetWidth(w - 2)
	// The title, path, error and help lines take the rest.
	m.table.SetHeight(max(h-16, 3))
	m.path.Width = max(w-12, 20)
}

// Files returns the last loaded server list.
func (m Model) Files() []api.FileInfo { return m.list }

// Editing reports whether a text field has focus, so the app must not
// treat keys as global shortcuts.
func (m Model) Editing() bool { return m.mode == modePath }

// Init loads the file list.
func (m Model) Init() tea.Cmd {
	return m.Refresh()
}

// Refresh reloads the list from the server.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	return tea.Batch(m.files.ListCmd(m.ctx), m.spinner.Tick)
}

// Shortcuts returns the status bar hints for the current mode.
func (m Model) Shortcuts() []components.Shortcut {
	switch m.mode {
	case modePath:
		return []components.Shortcut{{Key: "enter", Desc: "upload"}, {Key: "esc", Desc: "cancel"}}
	case modeConfirmDelete:
		return []components.Shortcut{{Key: "y", Desc: "delete"}, {Key: "n", Desc: "keep"}}
	}
	return []components.Shortcut{
		{Key: "u", Desc: "upload"},
		{Key: "enter", Desc: "attach"},
		{Key: "d", Desc: "delete"},
		{Key: "r", Desc: "refresh"},
	}
}

// Update handles list results and keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case upload.FilesMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.err = ""
		m.setFiles(msg.Files)
		return m, nil

	case upload.UploadedMsg:
		m.uploading = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, components.Notify(components.ToastError, m.err)
		}
		m.err = ""
		m.path.Reset()
		m.attach.AttachFile(msg.File.ID)
		m.refreshRows()
		attached := AttachedMsg{ID: msg.File.ID, Name: msg.File.Name}
		refresh := m.Refresh()
		return m, tea.Batch(
			components.Notify(components.ToastSuccess, "Uploaded "+msg.File.Describe()),
			func() tea.Msg { return attached },
			refresh,
		)

	case upload.DeletedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, components.Notify(components.ToastError, "Delete failed: "+m.err)
		}
		if m.attach.AttachedFile() == msg.ID {
			m.attach.AttachFile("")
		}
		kept := m.list[:0:0]
		for _, f := range m.list {
			if f.FileID != msg.ID {
				kept = append(kept, f)
			}
		}
		m.setFiles(kept)
		return m, components.Notify(components.ToastSuccess, "File deleted")

	case spinner.TickMsg:
		if !m.loading && !m.uploading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modePath:
			return m.updatePath(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "u", "o", "/":
		m.mode = modePath
		m.err = ""
		cmd := m.path.Focus()
		return m, cmd
	case "r":
		cmd := m.Refresh()
		return m, cmd
	case "d", "delete":
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
		return m, nil
	case "enter", "a":
		f, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.attach.AttachFile(f.FileID)
		m.refreshRows()
		attached := AttachedMsg{ID: f.FileID, Name: displayName(f)}
		return m, func() tea.Msg { return attached }
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updatePath(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.path.Blur()
		return m, nil
	case "enter":
		p := expandHome(strings.Trim(strings.TrimSpace(m.path.Value()), `"'`))
		if p == "" || m.uploading {
			return m, nil
		}
		m.mode = modeBrowse
		m.path.Blur()
		m.uploading = true
		m.err = ""
		return m, tea.Batch(m.files.UploadCmd(m.ctx, p), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.mode = modeBrowse
	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}
	f, ok := m.selected()
	if !ok {
		return m, nil
	}
	return m, m.files.DeleteCmd(m.ctx, f.FileID)
}

func (m Model) selected() (api.FileInfo, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.list) {
		return api.FileInfo{}, false
	}
	return m.list[i], true
}

func (m *Model) setFiles(files []api.FileInfo) {
	m.list = files
	m.refreshRows()
	if c := m.table.Cursor(); c >= len(files) && len(files) > 0 {
		m.table.SetCursor(len(files) - 1)
	}
}

func (m *Model) refreshRows() {
	attached := m.attach.AttachedFile()
	rows := make([]table.Row, len(m.list))
	for i, f := range m.list {
		mark := ""
		if f.FileID == attached {
			mark = "●"
		}
		uploaded := ""
		if !f.UploadTime.IsZero() {
			uploaded = humanize.Time(f.UploadTime.Time)
		}
		rows[i] = table.Row{
			mark,
			util.SingleLine(displayName(f)),
			upload.FormatSize(f.FileSize),
			uploaded,
			util.Truncate(f.FileID, 8),
		}
	}
	m.table.SetRows(rows)
}

func displayName(f api.FileInfo) string {
	if f.OriginalFilename != "" {
		return f.OriginalFilename
	}
	return f.Filename
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// View renders the screen.
func (m Model) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.FormTitle.Render("Upload PDF Document"))
	b.WriteString("\n")
	switch {
	case m.uploading:
		b.WriteString(m.spinner.View() + " Uploading your PDF...")
	case m.mode == modePath:
		b.WriteString(m.path.View())
	default:
		b.WriteString(t.Muted.Render("Press u to upload a PDF (max 10 MB)"))
	}
	b.WriteString("\n\n")

	title := "Your files"
	if m.loading {
		title += " " + m.spinner.View()
	}
	b.WriteString(t.FormLabel.Render(title))
	b.WriteString("\n")
	if len(m.list) == 0 && !m.loading {
		b.WriteString(t.Muted.Render("No files uploaded yet."))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	switch {
	case m.mode == modeConfirmDelete:
		if f, ok := m.selected(); ok {
			b.WriteString(t.Error.Render("Delete " + displayName(f) + "? (y/n)"))
		}
	case m.err != "":
		b.WriteString(t.Error.Render(m.err))
	}
	b.WriteString("\n\n")

	b.WriteString(t.FormLabel.Render("How to use"))
	b.WriteString("\n")
	b.WriteString(t.Muted.Render("1. Upload a PDF document with u\n" +
		"2. Start chatting about the document content\n" +
		"3. Ask questions or request summaries"))

	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}
