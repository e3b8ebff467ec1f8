// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model. It owns the screen phases
// (loading, sign-in, main) and routes messages to the chat and uploads
// tabs.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	convo "github.com/jeranaias/pdfchat-tui/internal/chat"
	"github.com/jeranaias/pdfchat-tui/internal/config"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/session"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
	"github.com/jeranaias/pdfchat-tui/internal/ui/auth"
	"github.com/jeranaias/pdfchat-tui/internal/ui/chat"
	"github.com/jeranaias/pdfchat-tui/internal/ui/components"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/ui/uploads"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// Phase is the top-level screen.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseAuth
	PhaseMain
)

// Tab is a main-screen tab.
type Tab int

const (
	TabChat Tab = iota
	TabUploads
)

var tabNames = []string{"Chat", "Uploads"}

// ConfigReloadedMsg carries a config re-read after the file changed.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// Deps are the components the TUI drives.
type Deps struct {
	Config  *config.Config
	Session *session.Manager
	Chat    *convo.Store
	Uploads *upload.Handler

	// History may be nil when the transcript directory is unusable.
	History *storage.Store
	Logger  *slog.Logger
}

// Model is the root model.
type Model struct {
	ctx    context.Context
	deps   Deps
	theme  *styles.Theme
	logger *slog.Logger

	phase Phase
	tab   Tab
	state session.State

	spinner spinner.Model
	form    auth.Model
	chat    chat.Model
	uploads uploads.Model

	header    *components.Header
	statusBar *components.StatusBar
	toasts    *components.Toasts

	width  int
	height int
}

// New creates the root model in the loading phase.
func New(ctx context.Context, deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	theme := styles.NewTheme(deps.Config.UI.Theme)

	m := Model{
		ctx:       ctx,
		deps:      deps,
		theme:     theme,
		logger:    logger,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Spinner)),
		header:    components.NewHeader(theme),
		statusBar: components.NewStatusBar(theme),
		toasts:    components.NewToasts(),
	}
	m.form = m.newForm()
	m.chat = m.newChat()
	m.uploads = uploads.New(ctx, theme, deps.Uploads, deps.Chat)
	return m
}

func (m Model) newForm() auth.Model {
	f := auth.New(m.ctx, m.theme, m.deps.Session)
	f.SetUsername(m.deps.Config.Auth.Username)
	f.SetWidth(m.width)
	return f
}

func (m Model) newChat() chat.Model {
	ui := m.deps.Config.UI
	mgr := m.deps.Session
	c := chat.New(m.theme, chat.Options{
		Store:          m.deps.Chat,
		History:        m.deps.History,
		Server:         m.deps.Config.API.BaseURL,
		User:           func() string { return mgr.Snapshot().Username() },
		RenderMarkdown: ui.RenderMarkdown,
		ShowTimestamps: ui.ShowTimestamps,
		Compact:        ui.CompactMode,
		AutoSave:       m.deps.Config.Storage.AutoSave,
	})
	return c
}

// Phase returns the current screen.
func (m Model) Phase() Phase { return m.phase }

// ActiveTab returns the selected main-screen tab.
func (m Model) ActiveTab() Tab { return m.tab }

// Theme returns the active theme.
func (m Model) Theme() *styles.Theme { return m.theme }

// Init restores the session and starts the loading spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("pdfchat"),
		m.deps.Session.ResolveCmd(m.ctx),
		m.spinner.Tick,
	)
}

// Update routes messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case session.ResolvedMsg:
		m.adopt(msg.State)
		if m.state.Authenticated() {
			cmd := m.enterMain()
			return m, cmd
		}
		cmd := m.enterAuth("")
		return m, cmd

	case session.AuthResultMsg:
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		if msg.Err == nil && msg.State.Authenticated() {
			m.adopt(msg.State)
			enter := m.enterMain()
			name := msg.State.Username()
			if msg.State.User != nil {
				name = msg.State.User.DisplayName()
			}
			return m, tea.Batch(cmd, enter, m.toasts.Push(components.ToastSuccess, "Welcome, "+name))
		}
		return m, cmd

	case session.ChangedMsg:
		if !m.adopt(msg.State) {
			return m, nil
		}
		m.header.SetUser(displayName(m.state))
		if m.phase == PhaseMain && !msg.State.Authenticated() {
			m.autosave()
			cmd := m.signedOut("Session ended. Please sign in again.")
			return m, cmd
		}
		return m, nil

	case session.ProfileMsg:
		if m.adopt(msg.State) {
			m.header.SetUser(displayName(m.state))
		}
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrNotAuthenticated) {
			m.logger.Warn("profile fetch failed", "error", msg.Err)
			return m, m.toasts.Push(components.ToastError, "Could not load your profile")
		}
		return m, nil

	case ConfigReloadedMsg:
		m.applyConfig(msg.Config)
		return m, nil

	case components.NotifyMsg:
		return m, m.toasts.Push(msg.Kind, msg.Text)

	case components.ToastExpiredMsg:
		m.toasts.Dismiss(msg.ID)
		return m, nil

	case uploads.AttachedMsg:
		m.tab = TabChat
		focus := m.focusTab()
		m.refreshChrome()
		name := msg.Name
		if name == "" {
			name = util.Truncate(msg.ID, 8)
		}
		return m, tea.Batch(focus, m.toasts.Push(components.ToastInfo, "Chatting about "+name))

	case convo.UpdatedMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		m.refreshChrome()
		return m, cmd

	case upload.FilesMsg, upload.UploadedMsg, upload.DeletedMsg:
		var cmd tea.Cmd
		m.uploads, cmd = m.uploads.Update(msg)
		m.refreshChrome()
		return m, cmd

	case spinner.TickMsg:
		// Each spinner only accepts its own ticks.
		var cmds []tea.Cmd
		var cmd tea.Cmd
		if m.phase == PhaseLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		m.form, cmd = m.form.Update(msg)
		cmds = append(cmds, cmd)
		m.chat, cmd = m.chat.Update(msg)
		cmds = append(cmds, cmd)
		m.uploads, cmd = m.uploads.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd
	}

	return m, m.routeToActive(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.autosave()
		return tea.Quit
	}

	switch m.phase {
	case PhaseLoading:
		return nil
	case PhaseAuth:
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return cmd
	}

	editing := m.tab == TabUploads && m.uploads.Editing()
	switch msg.String() {
	case "tab", "shift+tab":
		if !editing {
			m.tab = (m.tab + 1) % Tab(len(tabNames))
			return m.focusTab()
		}
	case "alt+1":
		m.tab = TabChat
		return m.focusTab()
	case "alt+2":
		m.tab = TabUploads
		return m.focusTab()
	case "ctrl+t":
		m.setTheme(m.theme.Toggle())
		return nil
	case "ctrl+l":
		m.autosave()
		m.deps.Session.Logout()
		return m.signedOut("Signed out.")
	}
	return m.routeToActive(msg)
}

func (m *Model) routeToActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.phase {
	case PhaseAuth:
		m.form, cmd = m.form.Update(msg)
	case PhaseMain:
		if m.tab == TabChat {
			m.chat, cmd = m.chat.Update(msg)
		} else {
			m.uploads, cmd = m.uploads.Update(msg)
		}
		m.refreshChrome()
	}
	return cmd
}

func (m *Model) enterMain() tea.Cmd {
	m.phase = PhaseMain
	m.tab = TabChat
	m.header.SetUser(displayName(m.state))
	m.uploads = uploads.New(m.ctx, m.theme, m.deps.Uploads, m.deps.Chat)
	m.resize(m.width, m.height)
	m.refreshChrome()
	m.logger.Info("tui session started", "user", m.state.Username())
	cmds := []tea.Cmd{m.focusTab(), m.uploads.Init()}
	if m.state.User == nil {
		cmds = append(cmds, m.deps.Session.WhoamiCmd(m.ctx))
	}
	return tea.Batch(cmds...)
}

func (m *Model) enterAuth(notice string) tea.Cmd {
	m.phase = PhaseAuth
	m.form = m.newForm()
	cmds := []tea.Cmd{m.form.Init()}
	if notice != "" {
		cmds = append(cmds, m.toasts.Push(components.ToastInfo, notice))
	}
	return tea.Batch(cmds...)
}

// signedOut clears per-user state and returns to the sign-in form.
func (m *Model) signedOut(notice string) tea.Cmd {
	m.deps.Chat.Reset()
	m.deps.Uploads.Library().Reset()
	m.chat = m.newChat()
	m.chat.SetSize(m.bodySize())
	m.state = m.deps.Session.Snapshot()
	m.header.SetUser("")
	return m.enterAuth(notice)
}

// adopt takes s unless a newer state was already seen.
func (m *Model) adopt(s session.State) bool {
	if s.Version < m.state.Version {
		return false
	}
	m.state = s
	return true
}

func (m *Model) autosave() {
	if m.phase != PhaseMain {
		return
	}
	if err := m.chat.AutoSave(); err != nil {
		m.logger.Warn("autosave failed", "error", err)
	}
}

func (m *Model) focusTab() tea.Cmd {
	if m.tab == TabChat {
		return m.chat.Focus()
	}
	m.chat.Blur()
	return nil
}

func (m *Model) setTheme(theme *styles.Theme) {
	m.theme = theme
	m.spinner.Style = theme.Spinner
	m.header.SetTheme(theme)
	m.statusBar.SetTheme(theme)
	m.form.SetTheme(theme)
	m.chat.SetTheme(theme)
	m.uploads.SetTheme(theme)
}

func (m *Model) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	// The file's theme wins over a ctrl+t toggle.
	if theme := styles.NewTheme(cfg.UI.Theme); theme.Name != m.theme.Name || theme.IsDark != m.theme.IsDark {
		m.setTheme(theme)
	}
	m.deps.Config.UI = cfg.UI
	m.deps.Config.Storage.AutoSave = cfg.Storage.AutoSave
	m.chat.SetOptions(cfg.UI.RenderMarkdown, cfg.UI.ShowTimestamps, cfg.UI.CompactMode, cfg.Storage.AutoSave)
	m.logger.Info("config reloaded", "theme", cfg.UI.Theme)
}

// bodySize is the area between the header and the toast and status lines.
func (m *Model) bodySize() (int, int) {
	return m.width, max(m.height-4, 3)
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.header.SetWidth(w)
	m.statusBar.SetWidth(w)
	m.form.SetWidth(w)
	bw, bh := m.bodySize()
	m.chat.SetSize(bw, bh)
	m.uploads.SetSize(bw, bh)
}

// refreshChrome updates the header and status bar from the children.
func (m *Model) refreshChrome() {
	m.header.SetTabs(tabNames, int(m.tab))
	m.header.SetFiles(m.deps.Uploads.Library().Len())

	snap := m.chat.Snapshot()
	if m.tab == TabChat {
		m.statusBar.SetContext(m.attachedLabel(snap.FileID))
		m.statusBar.SetBusy(snap.Busy)
		m.statusBar.SetShortcuts(append(m.chat.Shortcuts(), m.globalShortcuts()...))
		return
	}
	m.statusBar.SetContext(components.FilesLabel(len(m.uploads.Files())) + " on server")
	m.statusBar.SetBusy(false)
	m.statusBar.SetShortcuts(append(m.uploads.Shortcuts(), m.globalShortcuts()...))
}

func (m *Model) globalShortcuts() []components.Shortcut {
	return []components.Shortcut{
		{Key: "tab", Desc: "switch tab"},
		{Key: "ctrl+t", Desc: "theme"},
		{Key: "ctrl+l", Desc: "sign out"},
	}
}

func (m *Model) attachedLabel(id string) string {
	if id == "" {
		return "No file attached"
	}
	for _, f := range m.deps.Uploads.Library().All() {
		if f.ID == id {
			return "File: " + f.Name
		}
	}
	for _, f := range m.uploads.Files() {
		if f.FileID == id {
			return "File: " + f.OriginalFilename
		}
	}
	return "File: " + util.Truncate(id, 8)
}

func displayName(s session.State) string {
	if s.User != nil {
		return s.User.DisplayName()
	}
	return ""
}

// View renders the current phase.
func (m Model) View() string {
	switch m.phase {
	case PhaseLoading:
		return m.loadingView()
	case PhaseAuth:
		return m.authView()
	}

	body := m.uploads.View()
	if m.tab == TabChat {
		body = m.chat.View()
	}
	_, bh := m.bodySize()
	if m.height > 0 {
		body = lipgloss.NewStyle().Height(bh).MaxHeight(bh).Render(body)
	}

	return strings.Join([]string{
		m.header.View(),
		body,
		m.toasts.View(m.theme),
		m.statusBar.View(),
	}, "\n")
}

func (m Model) loadingView() string {
	t := m.theme
	content := lipgloss.JoinVertical(lipgloss.Center,
		m.spinner.View()+" "+t.FormTitle.Render("Loading..."),
		t.Muted.Render("Please wait while we set things up"),
	)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) authView() string {
	t := m.theme
	banner := lipgloss.JoinVertical(lipgloss.Center,
		t.HeaderTitle.Render("pdfchat"),
		t.Muted.Render("Chat with your PDF documents"),
	)
	content := lipgloss.JoinVertical(lipgloss.Center, banner, "", m.form.View(), "", m.toasts.View(t))
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
