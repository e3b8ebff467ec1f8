// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// ResolvedMsg is sent when startup resolution finishes.
type ResolvedMsg struct {
	State State
}

// AuthResultMsg carries the outcome of a login or registration.
type AuthResultMsg struct {
	// Err is nil on success; otherwise usually an *AuthError.
	Err   error
	State State
}

// ChangedMsg is sent whenever the session state changes.
type ChangedMsg struct {
	State State
}

// ProfileMsg carries the outcome of a profile re-fetch.
type ProfileMsg struct {
	User  *api.UserProfile
	Err   error
	State State
}

// ResolveCmd runs Resolve off the UI goroutine.
func (m *Manager) ResolveCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		m.Resolve(ctx)
		return ResolvedMsg{State: m.Snapshot()}
	}
}

// LoginCmd runs Login off the UI goroutine.
func (m *Manager) LoginCmd(ctx context.Context, username, password string) tea.Cmd {
	return func() tea.Msg {
		err := m.Login(ctx, username, password)
		return AuthResultMsg{Err: err, State: m.Snapshot()}
	}
}

// RegisterCmd runs Register off the UI goroutine.
func (m *Manager) RegisterCmd(ctx context.Context, req api.RegisterRequest) tea.Cmd {
	return func() tea.Msg {
		err := m.Register(ctx, req)
		return AuthResultMsg{Err: err, State: m.Snapshot()}
	}
}

// WhoamiCmd re-fetches the profile off the UI goroutine.
func (m *Manager) WhoamiCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		user, err := m.Whoami(ctx)
		return ProfileMsg{User: user, Err: err, State: m.Snapshot()}
	}
}

// Forward delivers state changes to p as ChangedMsgs, in version order.
// A state that reaches the subscriber after a newer one is dropped.
func (m *Manager) Forward(p *tea.Program) (unsubscribe func()) {
	return m.forward(func(s State) { p.Send(ChangedMsg{State: s}) })
}

func (m *Manager) forward(send func(State)) func() {
	relay := util.NewRelay(send)

	var mu sync.Mutex
	var last uint64
	unsub := m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Version <= last {
			return
		}
		last = s.Version
		relay.Push(s)
	})

	return func() {
		unsub()
		relay.Close()
	}
}
