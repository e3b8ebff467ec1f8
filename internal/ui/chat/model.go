// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the conversation screen: a scrolling transcript above a
// multi-line input.
package chat

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	convo "github.com/jeranaias/pdfchat-tui/internal/chat"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
	"github.com/jeranaias/pdfchat-tui/internal/ui/components"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
)

const inputHeight = 3

// Options configures the chat screen.
type Options struct {
	Store *convo.Store

	// History receives saved transcripts. Saving is disabled when nil.
	History *storage.Store

	// Server and User are recorded on saved transcripts.
	Server string
	User   func() string

	RenderMarkdown bool
	ShowTimestamps bool
	Compact        bool
	AutoSave       bool

	// Copy writes to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
}

// Model is the chat screen.
type Model struct {
	opts  Options
	theme *styles.Theme
	keys  KeyMap

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	ticking  bool

	snap   convo.Snapshot
	width  int
	height int

	md       *glamour.TermRenderer
	mdCache  map[string]string
	mdFailed bool
}

// New creates the chat screen around opts.Store.
func New(theme *styles.Theme, opts Options) Model {
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.User == nil {
		opts.User = func() string { return "" }
	}

	m := Model{
		opts:     opts,
		keys:     DefaultKeyMap(),
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		mdCache:  make(map[string]string),
	}

	in := textarea.New()
	in.Placeholder = "Type your message..."
	in.Prompt = ""
	in.ShowLineNumbers = false
	in.CharLimit = 8000
	in.SetHeight(inputHeight)
	in.KeyMap.InsertNewline = m.keys.Newline
	in.Focus()
	m.input = in

	m.SetTheme(theme)
	m.snap = opts.Store.Snapshot()
	m.refresh(true)
	return m
}

// SetTheme swaps the theme and drops rendered markdown.
func (m *Model) SetTheme(theme *styles.Theme) {
	m.theme = theme
	m.spinner.Style = theme.Spinner
	m.input.FocusedStyle.Placeholder = theme.Muted
	m.input.BlurredStyle.Placeholder = theme.Muted
	m.resetMarkdown()
	m.refresh(false)
}

// SetOptions updates the display toggles from a reloaded config.
func (m *Model) SetOptions(renderMarkdown, showTimestamps, compact, autoSave bool) {
	m.opts.RenderMarkdown = renderMarkdown
	m.opts.ShowTimestamps = showTimestamps
	m.opts.Compact = compact
	m.opts.AutoSave = autoSave
	m.refresh(false)
}

// SetSize lays the screen out in w by h cells.
func (m *Model) SetSize(w, h int) {
	if w != m.width {
		m.resetMarkdown()
	}
	m.width, m.height = w, h
	m.input.SetWidth(max(w-4, 10))
	m.viewport.Width = w
	m.viewport.Height = max(h-inputHeight-2, 1)
	m.refresh(true)
}

// Focus gives the input the cursor.
func (m *Model) Focus() tea.Cmd { return m.input.Focus() }

// Blur takes the cursor away.
func (m *Model) Blur() { m.input.Blur() }

// Snapshot returns the last conversation state seen.
func (m Model) Snapshot() convo.Snapshot { return m.snap }

// Input returns the current draft.
func (m Model) Input() string { return m.input.Value() }

// Shortcuts returns the status bar hints.
func (m Model) Shortcuts() []components.Shortcut { return m.keys.Shortcuts() }

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles conversation changes and input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case convo.UpdatedMsg:
		cmd := m.setSnapshot(msg.Snapshot)
		return m, cmd

	case spinner.TickMsg:
		if !m.snap.Busy {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh(false)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Send):
			cmd := m.send()
			return m, cmd
		case key.Matches(msg, m.keys.Copy):
			cmd := m.copyLastReply()
			return m, cmd
		case key.Matches(msg, m.keys.New):
			cmd := m.newConversation()
			return m, cmd
		case key.Matches(msg, m.keys.Save):
			cmd := m.save()
			return m, cmd
		case key.Matches(msg, m.keys.Detach):
			cmd := m.detach()
			return m, cmd
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.ViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.ViewDown()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// setSnapshot adopts s and starts the spinner when an exchange begins.
// Snapshots older than the one shown are ignored.
func (m *Model) setSnapshot(s convo.Snapshot) tea.Cmd {
	if s.Version < m.snap.Version {
		return nil
	}
	grew := len(s.Messages) != len(m.snap.Messages) || lastSettled(s) != lastSettled(m.snap)
	m.snap = s
	m.refresh(grew)
	if s.Busy && !m.ticking {
		m.ticking = true
		return m.spinner.Tick
	}
	return nil
}

func lastSettled(s convo.Snapshot) string {
	if n := len(s.Messages); n > 0 && !s.Messages[n-1].Pending() {
		return s.Messages[n-1].ID
	}
	return ""
}

func (m *Model) send() tea.Cmd {
	content := m.input.Value()
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if m.snap.Busy || !m.opts.Store.Send(content) {
		return components.Notify(components.ToastInfo, "Wait for the current reply to finish")
	}
	m.input.Reset()
	return m.setSnapshot(m.opts.Store.Snapshot())
}

func (m *Model) copyLastReply() tea.Cmd {
	msgs := m.snap.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role != convo.RoleAssistant || msg.Pending() {
			continue
		}
		if err := m.opts.Copy(msg.Content); err != nil {
			return components.Notify(components.ToastError, "Copy failed: "+err.Error())
		}
		return components.Notify(components.ToastSuccess, "Reply copied to clipboard")
	}
	return components.Notify(components.ToastInfo, "Nothing to copy yet")
}

func (m *Model) newConversation() tea.Cmd {
	var cmds []tea.Cmd
	if m.opts.AutoSave {
		if err := m.saveTranscript(); err != nil {
			cmds = append(cmds, components.Notify(components.ToastError, "Autosave failed: "+err.Error()))
		}
	}
	m.opts.Store.Reset()
	cmds = append(cmds,
		m.setSnapshot(m.opts.Store.Snapshot()),
		components.Notify(components.ToastInfo, "Started a new conversation"))
	return tea.Batch(cmds...)
}

func (m *Model) save() tea.Cmd {
	if m.opts.History == nil {
		return components.Notify(components.ToastError, "Conversation history is unavailable")
	}
	if !m.opts.Store.HasUserMessages() {
		return components.Notify(components.ToastInfo, "Nothing to save yet")
	}
	if err := m.saveTranscript(); err != nil {
		return components.Notify(components.ToastError, "Save failed: "+err.Error())
	}
	return components.Notify(components.ToastSuccess, "Conversation saved")
}

func (m *Model) saveTranscript() error {
	if m.opts.History == nil || !m.opts.Store.HasUserMessages() {
		return nil
	}
	conv := m.opts.Store.Transcript()
	conv.Server = m.opts.Server
	conv.Username = m.opts.User()
	_, err := m.opts.History.Save(conv)
	return err
}

// AutoSave writes the transcript when autosave is on. The app calls it
// before logging out or quitting.
func (m *Model) AutoSave() error {
	if !m.opts.AutoSave {
		return nil
	}
	return m.saveTranscript()
}

func (m *Model) detach() tea.Cmd {
	if m.snap.FileID == "" {
		return nil
	}
	m.opts.Store.AttachFile("")
	m.setSnapshot(m.opts.Store.Snapshot())
	return components.Notify(components.ToastInfo, "File detached")
}

func (m *Model) refresh(toBottom bool) {
	m.viewport.SetContent(m.renderMessages())
	if toBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resetMarkdown() {
	m.md = nil
	m.mdFailed = false
	clear(m.mdCache)
}
