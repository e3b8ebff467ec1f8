// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth is the sign-in screen: one form that switches between login
// and registration.
package auth

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/session"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// MinPasswordLength is enforced on registration only.
const MinPasswordLength = 6

// Mode selects login or registration.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// MsgGenericError is shown when a failure carries no message.
const MsgGenericError = "An error occurred"

type field int

const (
	fieldUsername field = iota
	fieldEmail
	fieldFullName
	fieldPassword
	fieldCount
)

// Authenticator starts logins and registrations. *session.Manager
// satisfies it.
type Authenticator interface {
	LoginCmd(ctx context.Context, username, password string) tea.Cmd
	RegisterCmd(ctx context.Context, req api.RegisterRequest) tea.Cmd
}

// Model is the auth form.
type Model struct {
	theme   *styles.Theme
	auth    Authenticator
	ctx     context.Context
	inputs  [fieldCount]textinput.Model
	spinner spinner.Model

	mode         Mode
	focus        int
	showPassword bool
	loading      bool
	err          string
	width        int
}

// New creates a login form.
func New(ctx context.Context, theme *styles.Theme, a Authenticator) Model {
	m := Model{theme: theme, auth: a, ctx: ctx}

	placeholders := [fieldCount]string{
		fieldUsername: "Enter your username",
		fieldEmail:    "Enter your email",
		fieldFullName: "Enter your full name",
		fieldPassword: "Enter your password",
	}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = 128
		in.Width = 40
		m.inputs[i] = in
	}
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.SetTheme(theme)
	m.focusCurrent()
	return m
}

// SetTheme swaps the theme.
func (m *Model) SetTheme(theme *styles.Theme) {
	m.theme = theme
	m.spinner.Style = theme.Spinner
	for i := range m.inputs {
		m.inputs[i].PlaceholderStyle = theme.FormHint
	}
}

// SetWidth sets the available width.
func (m *Model) SetWidth(w int) { m.width = w }

// SetUsername prefills the username field.
func (m *Model) SetUsername(name string) {
	m.inputs[fieldUsername].SetValue(name)
	if name != "" && m.mode == ModeLogin {
		m.focus = m.indexOf(fieldPassword)
		m.focusCurrent()
	}
}

// Mode returns the current mode.
func (m Model) Mode() Mode { return m.mode }

// Loading reports whether a request is in flight.
func (m Model) Loading() bool { return m.loading }

// Err returns the error shown under the form.
func (m Model) Err() string { return m.err }

// ShowPassword reports whether the password is shown in clear.
func (m Model) ShowPassword() bool { return m.showPassword }

// Value returns the trimmed content of a field by name: username, email,
// full_name or password.
func (m Model) Value(name string) string {
	switch name {
	case "username":
		return util.NormalizeInput(m.inputs[fieldUsername].Value())
	case "email":
		return strings.TrimSpace(m.inputs[fieldEmail].Value())
	case "full_name":
		return strings.TrimSpace(m.inputs[fieldFullName].Value())
	case "password":
		return m.inputs[fieldPassword].Value()
	}
	return ""
}

func (m Model) visible() []field {
	if m.mode == ModeRegister {
		return []field{fieldUsername, fieldEmail, fieldFullName, fieldPassword}
	}
	return []field{fieldUsername, fieldPassword}
}

func (m Model) indexOf(f field) int {
	for i, v := range m.visible() {
		if v == f {
			return i
		}
	}
	return 0
}

func (m *Model) focusCurrent() tea.Cmd {
	vis := m.visible()
	var cmd tea.Cmd
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	if m.focus >= 0 && m.focus < len(vis) {
		cmd = m.inputs[vis[m.focus]].Focus()
	}
	return cmd
}

// Valid reports whether the form can be submitted.
func (m Model) Valid() bool {
	if m.Value("username") == "" || m.Value("password") == "" {
		return false
	}
	if m.mode == ModeLogin {
		return true
	}
	email := m.Value("email")
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	return len([]rune(m.Value("password"))) >= MinPasswordLength
}

// ToggleMode switches between login and registration and clears the form.
func (m *Model) ToggleMode() tea.Cmd {
	if m.loading {
		return nil
	}
	if m.mode == ModeLogin {
		m.mode = ModeRegister
	} else {
		m.mode = ModeLogin
	}
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.err = ""
	m.focus = 0
	return m.focusCurrent()
}

// TogglePassword shows or hides the password.
func (m *Model) TogglePassword() {
	m.showPassword = !m.showPassword
	if m.showPassword {
		m.inputs[fieldPassword].EchoMode = textinput.EchoNormal
	} else {
		m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	}
}

// Submit starts the request and returns its command, or nil while invalid
// or already loading.
func (m *Model) Submit() tea.Cmd {
	if m.loading || !m.Valid() {
		return nil
	}
	m.loading = true
	m.err = ""
	if m.mode == ModeLogin {
		return m.auth.LoginCmd(m.ctx, m.Value("username"), m.Value("password"))
	}
	return m.auth.RegisterCmd(m.ctx, api.RegisterRequest{
		Username: m.Value("username"),
		Email:    m.Value("email"),
		Password: m.Value("password"),
		FullName: m.Value("full_name"),
	})
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input and auth results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case session.AuthResultMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			if m.err == "" {
				m.err = MsgGenericError
			}
			return m, nil
		}
		// The app switches screens; clear secrets for the next visit.
		m.inputs[fieldPassword].Reset()
		m.err = ""
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down":
			m.focus = (m.focus + 1) % len(m.visible())
			cmd := m.focusCurrent()
			return m, cmd
		case "shift+tab", "up":
			n := len(m.visible())
			m.focus = (m.focus - 1 + n) % n
			cmd := m.focusCurrent()
			return m, cmd
		case "ctrl+r":
			cmd := m.ToggleMode()
			return m, cmd
		case "ctrl+p":
			m.TogglePassword()
			return m, nil
		case "enter":
			if cmd := m.Submit(); cmd != nil {
				return m, tea.Batch(cmd, m.spinner.Tick)
			}
			if m.focus < len(m.visible())-1 {
				m.focus++
				cmd := m.focusCurrent()
				return m, cmd
			}
			return m, nil
		}
		if m.loading {
			return m, nil
		}
		m.err = ""
	}

	vis := m.visible()
	var cmd tea.Cmd
	f := vis[m.focus]
	m.inputs[f], cmd = m.inputs[f].Update(msg)
	return m, cmd
}

// View renders the form centered in the available width.
func (m Model) View() string {
	t := m.theme
	var b strings.Builder

	title, alt := "Sign in to pdfchat", "Don't have an account? ctrl+r to sign up"
	if m.mode == ModeRegister {
		title, alt = "Create your account", "Already have an account? ctrl+r to sign in"
	}
	b.WriteString(t.FormTitle.Render(title))
	b.WriteString("\n\n")

	labels := [fieldCount]string{
		fieldUsername: "Username",
		fieldEmail:    "Email",
		fieldFullName: "Full name (optional)",
		fieldPassword: "Password",
	}
	for i, f := range m.visible() {
		label := labels[f]
		if i == m.focus {
			label = "> " + label
		} else {
			label = "  " + label
		}
		b.WriteString(t.FormLabel.Render(label))
		b.WriteString("\n  ")
		b.WriteString(m.inputs[f].View())
		b.WriteString("\n")
		if f == fieldPassword && m.mode == ModeRegister {
			if n := len([]rune(m.Value("password"))); n > 0 && n < MinPasswordLength {
				b.WriteString(t.FormError.Render("  At least 6 characters"))
				b.WriteString("\n")
			}
		}
	}
	b.WriteString("\n")

	switch {
	case m.loading:
		label := "Signing in..."
		if m.mode == ModeRegister {
			label = "Creating account..."
		}
		b.WriteString(m.spinner.View() + " " + t.ButtonDisabled.Render(label))
	case m.Valid():
		b.WriteString(t.Button.Render(m.buttonLabel()))
	default:
		b.WriteString(t.ButtonDisabled.Render(m.buttonLabel()))
	}
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(t.FormError.Render(m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(t.FormHint.Render(alt))
	b.WriteString("\n")
	eye := "show"
	if m.showPassword {
		eye = "hide"
	}
	b.WriteString(t.FormHint.Render("tab next field • ctrl+p " + eye + " password • ctrl+c quit"))

	box := t.FormBox.Render(b.String())
	if m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
	}
	return box
}

func (m Model) buttonLabel() string {
	if m.mode == ModeRegister {
		return "Create Account"
	}
	return "Sign In"
}
