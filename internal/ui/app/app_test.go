// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/apitest"
	convo "github.com/jeranaias/pdfchat-tui/internal/chat"
	"github.com/jeranaias/pdfchat-tui/internal/config"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/session"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
	"github.com/jeranaias/pdfchat-tui/internal/ui/components"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/ui/uploads"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type fixture struct {
	srv    *apitest.Server
	tokens *tokenstore.MemoryStore
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("bob", "hunter22")

	cfg := config.Default()
	cfg.API.BaseURL = srv.APIURL()
	cfg.UI.Theme = styles.ThemeDark
	cfg.UI.RenderMarkdown = false

	tokens := tokenstore.NewMemory()
	client := api.NewClient(srv.APIURL()).WithTokenStore(tokens).WithTimeout(5 * time.Second)
	store := convo.NewStore(client)
	t.Cleanup(store.Close)

	history, err := storage.NewStore(t.TempDir(), 50)
	require.NoError(t, err)

	return &fixture{
		srv:    srv,
		tokens: tokens,
		deps: Deps{
			Config:  cfg,
			Session: session.NewManager(client, tokens, logging.Discard()),
			Chat:    store,
			Uploads: upload.NewHandler(client),
			History: history,
		},
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	access, refresh := f.srv.IssueTokens("bob")
	require.NoError(t, f.tokens.Set(tokenstore.AccessTokenKey, access))
	require.NoError(t, f.tokens.Set(tokenstore.RefreshTokenKey, refresh))
}

// start builds the model and delivers the startup resolution.
func (f *fixture) start(t *testing.T) Model {
	t.Helper()
	m := New(context.Background(), f.deps)
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return update(m, f.deps.Session.ResolveCmd(context.Background())())
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestApp_LoadingScreen(t *testing.T) {
	f := newFixture(t)
	m := New(context.Background(), f.deps)
	assert.Equal(t, PhaseLoading, m.Phase())
	view := m.View()
	assert.Contains(t, view, "Loading...")
	assert.Contains(t, view, "Please wait while we set things up")
	assert.NotNil(t, m.Init())

	m, cmd := updateCmd(m, runes("x"))
	assert.Nil(t, cmd, "keys are ignored while loading")
	assert.Equal(t, PhaseLoading, m.Phase())
}

func TestApp_NoSessionShowsSignIn(t *testing.T) {
	f := newFixture(t)
	m := f.start(t)
	assert.Equal(t, PhaseAuth, m.Phase())
	assert.Contains(t, m.View(), "Sign in to pdfchat")
}

func TestApp_StoredSessionGoesStraightToChat(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	require.Equal(t, PhaseMain, m.Phase())
	assert.Equal(t, TabChat, m.ActiveTab())
	view := m.View()
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "0 files uploaded")
	assert.Contains(t, view, convo.Greeting)
	assert.Contains(t, view, "No file attached")
}

func TestApp_LoginFromForm(t *testing.T) {
	f := newFixture(t)
	m := f.start(t)
	require.Equal(t, PhaseAuth, m.Phase())

	m = update(m, runes("bob"))
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, runes("hunter22"))
	m, cmd := updateCmd(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	result := f.deps.Session.LoginCmd(context.Background(), "bob", "hunter22")()
	m, cmd = updateCmd(m, result)
	require.Equal(t, PhaseMain, m.Phase())
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Welcome, bob")
}

func TestApp_FailedLoginStaysOnForm(t *testing.T) {
	f := newFixture(t)
	m := f.start(t)
	result := f.deps.Session.LoginCmd(context.Background(), "bob", "nope")()
	m = update(m, result)
	assert.Equal(t, PhaseAuth, m.Phase())
	assert.Contains(t, m.View(), "Incorrect username or password")
}

func TestApp_TabSwitching(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabUploads, m.ActiveTab())
	assert.Contains(t, m.View(), "Upload PDF Document")
	assert.Contains(t, m.View(), "How to use")

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabChat, m.ActiveTab())

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2"), Alt: true})
	assert.Equal(t, TabUploads, m.ActiveTab())
}

func TestApp_TabIsTypedWhileEnteringPath(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, runes("u"))
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabUploads, m.ActiveTab())
}

func TestApp_AttachSwitchesToChat(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	uf, err := f.deps.Uploads.Upload(context.Background(),
		upload.BytesSource("paper.pdf", upload.PDFMimeType, samplePDF))
	require.NoError(t, err)
	f.deps.Chat.AttachFile(uf.ID)

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, uploads.AttachedMsg{ID: uf.ID, Name: uf.Name})
	m = update(m, convo.UpdatedMsg{Snapshot: f.deps.Chat.Snapshot()})

	assert.Equal(t, TabChat, m.ActiveTab())
	view := m.View()
	assert.Contains(t, view, "File: paper.pdf")
	assert.Contains(t, view, "1 file uploaded")
	assert.Contains(t, view, "Chatting about paper.pdf")
}

func TestApp_SignOut(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)
	require.Equal(t, PhaseMain, m.Phase())

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, PhaseAuth, m.Phase())
	assert.Zero(t, f.tokens.Len())
	assert.Contains(t, m.View(), "Signed out.")
}

func TestApp_SessionLostReturnsToSignIn(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	f.deps.Session.Logout()
	m = update(m, session.ChangedMsg{State: f.deps.Session.Snapshot()})
	assert.Equal(t, PhaseAuth, m.Phase())
	assert.Contains(t, m.View(), "Session ended")
}

func TestApp_StaleSessionChangeIsIgnored(t *testing.T) {
	f := newFixture(t)
	m := f.start(t)

	var states []session.State
	unsubscribe := f.deps.Session.Subscribe(func(s session.State) { states = append(states, s) })
	result := f.deps.Session.LoginCmd(context.Background(), "bob", "hunter22")()
	unsubscribe()
	require.Len(t, states, 2, "tokens, then profile")

	m = update(m, result)
	require.Equal(t, PhaseMain, m.Phase())

	// The token-only change arrives after the login result.
	m = update(m, session.ChangedMsg{State: states[0]})
	assert.Equal(t, PhaseMain, m.Phase())
	assert.Equal(t, "bob", m.state.Username(), "profile from the newer state is kept")

	m = update(m, session.ChangedMsg{State: session.State{}})
	assert.Equal(t, PhaseMain, m.Phase(), "a zero state is older than anything seen")
}

func TestApp_MissingProfileIsFetched(t *testing.T) {
	f := newFixture(t)
	m := f.start(t)

	f.srv.FailNext("GET /auth/me", 500, "identity service down")
	result := f.deps.Session.LoginCmd(context.Background(), "bob", "hunter22")()
	require.True(t, result.(session.AuthResultMsg).State.Authenticated())
	require.Nil(t, result.(session.AuthResultMsg).State.User)

	m, cmd := updateCmd(m, result)
	require.Equal(t, PhaseMain, m.Phase())

	profile, ok := findMsg[session.ProfileMsg](cmd, 3*time.Second)
	require.True(t, ok, "entering the chat without a profile fetches it")
	require.NoError(t, profile.Err)
	m = update(m, profile)
	assert.Equal(t, "bob", m.state.Username())
}

func TestApp_ProfileFetchFailureShowsToast(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	f.srv.FailNext("GET /auth/me", 500, "identity service down")
	m = update(m, f.deps.Session.WhoamiCmd(context.Background())())
	assert.Equal(t, PhaseMain, m.Phase())
	assert.Contains(t, m.View(), "Could not load your profile")
}

// findMsg runs cmd, including every command of a batch, and returns the
// first message of type T produced within d.
func findMsg[T tea.Msg](cmd tea.Cmd, d time.Duration) (T, bool) {
	var zero T
	if cmd == nil {
		return zero, false
	}
	out := make(chan tea.Msg, 64)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					if sub != nil {
						run(sub)
					}
				}
				return
			}
			out <- msg
		}()
	}
	run(cmd)

	deadline := time.After(d)
	for {
		select {
		case msg := <-out:
			if v, ok := msg.(T); ok {
				return v, true
			}
		case <-deadline:
			return zero, false
		}
	}
}

func TestApp_SessionChangeWhileAuthenticatedIsKept(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)
	m = update(m, session.ChangedMsg{State: f.deps.Session.Snapshot()})
	assert.Equal(t, PhaseMain, m.Phase())
}

func TestApp_ThemeToggleAndReload(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)
	require.Equal(t, styles.ThemeDark, m.Theme().Name)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, styles.ThemeLight, m.Theme().Name)

	cfg := config.Default()
	cfg.UI.Theme = styles.ThemeDark
	cfg.UI.ShowTimestamps = true
	m = update(m, ConfigReloadedMsg{Config: cfg})
	assert.Equal(t, styles.ThemeDark, m.Theme().Name)
}

func TestApp_Toasts(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	m, cmd := updateCmd(m, components.NotifyMsg{Kind: components.ToastError, Text: "disk full"})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "disk full")

	items := m.toasts.Items()
	require.NotEmpty(t, items)
	m = update(m, components.ToastExpiredMsg{ID: items[len(items)-1].ID})
	assert.NotContains(t, m.View(), "disk full")
}

func TestApp_CtrlCQuitsAndAutosaves(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	m := f.start(t)

	_, ok := f.deps.Chat.SendAndWait(context.Background(), "keep me")
	require.True(t, ok)
	m = update(m, convo.UpdatedMsg{Snapshot: f.deps.Chat.Snapshot()})

	_, cmd := updateCmd(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	metas, err := f.deps.History.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}
