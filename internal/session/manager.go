// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// =============================================================================
// STATE
// =============================================================================

// Loading reports whether startup resolution has finished.
type Loading int

const (
	// Initializing is the state before Resolve completes.
	Initializing Loading = iota

	// Ready is the state after Resolve completes, whatever its outcome.
	Ready
)

// String returns the loading state name.
func (l Loading) String() string {
	if l == Ready {
		return "ready"
	}
	return "initializing"
}

// State is a point-in-time copy of the session.
type State struct {
	AccessToken  string
	RefreshToken string

	// User is set only after a successful identity fetch in this process.
	User *api.UserProfile

	Loading Loading

	// Version increases with every change. A State with a lower Version
	// than one already seen is stale.
	Version uint64
}

// Authenticated reports whether an access token is held.
func (s State) Authenticated() bool {
	return s.AccessToken != ""
}

// Username returns the profile's username or "".
func (s State) Username() string {
	if s.User == nil {
		return ""
	}
	return s.User.Username
}

// =============================================================================
// ERRORS
// =============================================================================

// User-facing failure messages.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgNetworkError       = "Network error. Please try again."
)

// ErrNotAuthenticated is returned by operations that need a session.
var ErrNotAuthenticated = errors.New("not logged in")

// AuthError is a login or registration failure carrying the message to show.
type AuthError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AuthError) Error() string { return e.Message }

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error { return e.Err }

// authError maps an API failure to the message the user sees.
func authError(err error, fallback string) *AuthError {
	if errors.Is(err, api.ErrNetwork) {
		return &AuthError{Message: MsgNetworkError, Err: err}
	}
	if msg := api.ServerMessage(err); msg != "" {
		return &AuthError{Message: msg, Err: err}
	}
	return &AuthError{Message: fallback, Err: err}
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Backend is the subset of the API client the manager needs.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (*api.TokenPair, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.UserProfile, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenPair, error)
	Me(ctx context.Context, token string) (*api.UserProfile, error)
}

// Manager owns the token pair and the current identity.
//
// Operations that change the session (Login, Register, Logout, Refresh,
// Resolve, Whoami) run one at a time under opMu for their whole duration,
// network calls included. Snapshot and the other readers only take the
// state lock, so they never wait on the network.
type Manager struct {
	backend Backend
	store   tokenstore.Store
	logger  *slog.Logger

	opMu sync.Mutex

	mu    sync.RWMutex
	state State

	resolveOnce sync.Once

	subMu     sync.Mutex
	subs      map[int]func(State)
	nextSubID int
}

// NewManager creates a manager. It reads the persisted access token so
// requests made before Resolve are authorized like the stored session.
func NewManager(backend Backend, store tokenstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		backend: backend,
		store:   store,
		logger:  logger,
		subs:    make(map[int]func(State)),
	}
	if token, err := tokenstore.Lookup(store, tokenstore.AccessTokenKey); err == nil {
		m.state.AccessToken = token
	}
	if token, err := tokenstore.Lookup(store, tokenstore.RefreshTokenKey); err == nil {
		m.state.RefreshToken = token
	}
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Manager) copyLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	return m.Snapshot().Authenticated()
}

// User returns a copy of the current profile or nil.
func (m *Manager) User() *api.UserProfile {
	return m.Snapshot().User
}

// Loading returns the startup resolution state.
func (m *Manager) Loading() Loading {
	return m.Snapshot().Loading
}

// Subscribe registers fn to receive the new state after every change.
// fn runs on the goroutine that made the change. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(s State) {
	m.subMu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	m.state.Version++
	s := m.copyLocked()
	m.mu.Unlock()
	m.notify(s)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Login exchanges credentials for a token pair, persists it and then
// fetches the identity with the new access token. A failed identity fetch
// leaves the token pair in place.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.loginLocked(ctx, username, password)
}

func (m *Manager) loginLocked(ctx context.Context, username, password string) error {
	username = util.NormalizeInput(username)

	pair, err := m.backend.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		m.logger.Info("login rejected", "username", username, "status", api.StatusCode(err))
		return authError(err, MsgLoginFailed)
	}

	if err := m.persist(pair); err != nil {
		m.logoutLocked()
		return &AuthError{Message: "Could not save session: " + err.Error(), Err: err}
	}
	m.update(func(s *State) {
		s.AccessToken = pair.AccessToken
		s.RefreshToken = pair.RefreshToken
	})
	m.logger.Info("logged in", "username", username)

	user, err := m.backend.Me(ctx, pair.AccessToken)
	switch {
	case err == nil:
		m.update(func(s *State) { s.User = user })
	case errors.Is(err, api.ErrNetwork):
		return &AuthError{Message: MsgNetworkError, Err: err}
	default:
		m.logger.Warn("identity fetch after login failed", "status", api.StatusCode(err))
	}
	return nil
}

// Register creates an account and then logs in with the same credentials.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	req.Username = util.NormalizeInput(req.Username)
	req.Email = util.NormalizeInput(req.Email)
	req.FullName = util.NormalizeInput(req.FullName)

	if _, err := m.backend.Register(ctx, req); err != nil {
		m.logger.Info("registration rejected", "username", req.Username, "status", api.StatusCode(err))
		return authError(err, MsgRegistrationFailed)
	}
	return m.loginLocked(ctx, req.Username, req.Password)
}

// Logout clears the persisted tokens and the in-memory session. It makes no
// network call.
func (m *Manager) Logout() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.logoutLocked()
}

func (m *Manager) logoutLocked() {
	for _, key := range []string{tokenstore.AccessTokenKey, tokenstore.RefreshTokenKey} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Error("failed to clear token", "key", key, "error", err)
		}
	}
	m.update(func(s *State) {
		s.AccessToken = ""
		s.RefreshToken = ""
		s.User = nil
	})
	m.logger.Info("logged out")
}

// Refresh exchanges the stored refresh token for a new pair. With no stored
// refresh token it returns false without a network call. Any failure logs
// the session out.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) bool {
	refreshToken, err := tokenstore.Lookup(m.store, tokenstore.RefreshTokenKey)
	if err != nil {
		m.logger.Error("failed to read refresh token", "error", err)
		refreshToken = ""
	}
	if refreshToken == "" {
		return false
	}

	pair, err := m.backend.Refresh(ctx, refreshToken)
	if err != nil {
		m.logger.Info("token refresh failed", "status", api.StatusCode(err), "network", errors.Is(err, api.ErrNetwork))
		m.logoutLocked()
		return false
	}
	if err := m.persist(pair); err != nil {
		m.logger.Error("failed to persist refreshed tokens", "error", err)
		m.logoutLocked()
		return false
	}
	m.update(func(s *State) {
		s.AccessToken = pair.AccessToken
		s.RefreshToken = pair.RefreshToken
	})
	m.logger.Debug("token refreshed")
	return true
}

// Resolve restores the persisted session. It runs at most once per Manager;
// later calls return immediately. With both tokens stored it fetches the
// identity: success adopts it, 401 tries one refresh, anything else logs
// out. Loading becomes Ready when it finishes, whatever the outcome.
func (m *Manager) Resolve(ctx context.Context) {
	m.resolveOnce.Do(func() {
		m.opMu.Lock()
		defer m.opMu.Unlock()
		defer m.update(func(s *State) { s.Loading = Ready })

		access, errA := tokenstore.Lookup(m.store, tokenstore.AccessTokenKey)
		refresh, errR := tokenstore.Lookup(m.store, tokenstore.RefreshTokenKey)
		if errA != nil || errR != nil {
			m.logger.Error("failed to read stored tokens", "error", errors.Join(errA, errR))
			return
		}
		if access == "" || refresh == "" {
			return
		}

		user, err := m.backend.Me(ctx, access)
		switch {
		case err == nil:
			m.update(func(s *State) {
				s.AccessToken = access
				s.RefreshToken = refresh
				s.User = user
			})
			m.logger.Info("session restored", "username", user.Username)
		case api.StatusCode(err) == http.StatusUnauthorized:
			if !m.refreshLocked(ctx) {
				m.logoutLocked()
			}
		default:
			m.logger.Info("session restore failed", "status", api.StatusCode(err), "network", errors.Is(err, api.ErrNetwork))
			m.logoutLocked()
		}
	})
}

// Whoami re-fetches the profile with the current access token. A 401 gets
// one refresh and one retry.
func (m *Manager) Whoami(ctx context.Context) (*api.UserProfile, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token := m.Snapshot().AccessToken
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	user, err := m.backend.Me(ctx, token)
	if api.IsUnauthorized(err) {
		if !m.refreshLocked(ctx) {
			return nil, ErrNotAuthenticated
		}
		user, err = m.backend.Me(ctx, m.Snapshot().AccessToken)
	}
	if err != nil {
		return nil, err
	}
	m.update(func(s *State) { s.User = user })
	out := *user
	return &out, nil
}

// persist stores both tokens. When either write fails both keys are
// removed, so the store never holds half of a pair.
func (m *Manager) persist(pair *api.TokenPair) error {
	err := m.store.Set(tokenstore.AccessTokenKey, pair.AccessToken)
	if err == nil {
		err = m.store.Set(tokenstore.RefreshTokenKey, pair.RefreshToken)
	}
	if err == nil {
		return nil
	}
	for _, key := range []string{tokenstore.AccessTokenKey, tokenstore.RefreshTokenKey} {
		if derr := m.store.Delete(key); derr != nil {
			m.logger.Error("failed to roll back token", "key", key, "error", derr)
		}
	}
	return err
}
