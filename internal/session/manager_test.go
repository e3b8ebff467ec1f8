// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/apitest"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
)

// =============================================================================
// HELPERS
// =============================================================================

func newManager(t *testing.T) (*Manager, *apitest.Server, *tokenstore.MemoryStore) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("bob", "hunter22")
	store := tokenstore.NewMemory()
	client := api.NewClient(srv.APIURL()).WithTokenStore(store).WithTimeout(5 * time.Second)
	return NewManager(client, store, logging.Discard()), srv, store
}

func stored(t *testing.T, s tokenstore.Store, key string) string {
	t.Helper()
	v, err := tokenstore.Lookup(s, key)
	require.NoError(t, err)
	return v
}

// fakeBackend scripts Backend responses.
type fakeBackend struct {
	login    func(api.Credentials) (*api.TokenPair, error)
	register func(api.RegisterRequest) (*api.UserProfile, error)
	refresh  func(string) (*api.TokenPair, error)
	me       func(string) (*api.UserProfile, error)

	mu       sync.Mutex
	meTokens []string
	calls    int
}

func (f *fakeBackend) record(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if token != "" {
		f.meTokens = append(f.meTokens, token)
	}
}

func (f *fakeBackend) Login(_ context.Context, c api.Credentials) (*api.TokenPair, error) {
	f.record("")
	return f.login(c)
}

func (f *fakeBackend) Register(_ context.Context, r api.RegisterRequest) (*api.UserProfile, error) {
	f.record("")
	return f.register(r)
}

func (f *fakeBackend) Refresh(_ context.Context, token string) (*api.TokenPair, error) {
	f.record("")
	return f.refresh(token)
}

func (f *fakeBackend) Me(_ context.Context, token string) (*api.UserProfile, error) {
	f.record(token)
	return f.me(token)
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_ValidCredentials(t *testing.T) {
	m, _, store := newManager(t)

	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))

	s := m.Snapshot()
	assert.True(t, s.Authenticated())
	require.NotNil(t, s.User)
	assert.Equal(t, "bob", s.User.Username)
	assert.Equal(t, s.AccessToken, stored(t, store, tokenstore.AccessTokenKey))
	assert.Equal(t, s.RefreshToken, stored(t, store, tokenstore.RefreshTokenKey))
	assert.NotEmpty(t, s.RefreshToken)
}

func TestLogin_InvalidCredentialsLeaveStateUnchanged(t *testing.T) {
	m, _, store := newManager(t)
	require.NoError(t, store.Set(tokenstore.AccessTokenKey, "old-A"))
	require.NoError(t, store.Set(tokenstore.RefreshTokenKey, "old-R"))

	err := m.Login(context.Background(), "bob", "wrong")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "Incorrect username or password", authErr.Message)
	assert.Nil(t, m.User())
	assert.Equal(t, "old-A", stored(t, store, tokenstore.AccessTokenKey))
	assert.Equal(t, "old-R", stored(t, store, tokenstore.RefreshTokenKey))
}

func TestLogin_FailureMessages(t *testing.T) {
	t.Run("rejection without detail", func(t *testing.T) {
		m, srv, _ := newManager(t)
		srv.FailNext("POST /auth/login", http.StatusInternalServerError, "")

		err := m.Login(context.Background(), "bob", "hunter22")
		require.Error(t, err)
		assert.Equal(t, MsgLoginFailed, err.Error())
	})

	t.Run("transport failure", func(t *testing.T) {
		m, srv, _ := newManager(t)
		srv.DropNext("POST /auth/login")

		err := m.Login(context.Background(), "bob", "hunter22")
		require.Error(t, err)
		assert.Equal(t, MsgNetworkError, err.Error())
		assert.True(t, errors.Is(err, api.ErrNetwork))
	})
}

func TestLogin_IdentityFailureKeepsTokens(t *testing.T) {
	m, srv, store := newManager(t)
	srv.FailNext("GET /auth/me", http.StatusInternalServerError, "database unavailable")

	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))

	s := m.Snapshot()
	assert.True(t, s.Authenticated())
	assert.Nil(t, s.User)
	assert.NotEmpty(t, stored(t, store, tokenstore.AccessTokenKey))
	assert.NotEmpty(t, stored(t, store, tokenstore.RefreshTokenKey))
}

func TestLogin_NormalizesUsername(t *testing.T) {
	m, _, _ := newManager(t)
	require.NoError(t, m.Login(context.Background(), "  bob \t", "hunter22"))
	assert.Equal(t, "bob", m.Snapshot().Username())
}

func TestLogin_RoundTrip(t *testing.T) {
	store := tokenstore.NewMemory()
	fb := &fakeBackend{
		login: func(api.Credentials) (*api.TokenPair, error) {
			return &api.TokenPair{AccessToken: "A", RefreshToken: "R", TokenType: "bearer"}, nil
		},
		me: func(token string) (*api.UserProfile, error) {
			return &api.UserProfile{ID: "u1", Username: "bob", Email: "bob@example.com", Role: "user", IsActive: true}, nil
		},
	}
	m := NewManager(fb, store, logging.Discard())

	require.NoError(t, m.Login(context.Background(), "bob", "pw"))

	assert.Equal(t, "A", stored(t, store, tokenstore.AccessTokenKey))
	assert.Equal(t, "R", stored(t, store, tokenstore.RefreshTokenKey))
	assert.Equal(t, []string{"A"}, fb.meTokens, "identity fetched with the new access token")
	assert.Equal(t, "bob", m.User().Username)
}

// =============================================================================
// REGISTER
// =============================================================================

func TestRegister_LogsIn(t *testing.T) {
	m, srv, _ := newManager(t)

	err := m.Register(context.Background(), api.RegisterRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "s3cretpw",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", m.Snapshot().Username())
	assert.Equal(t, 1, srv.Hits("POST /auth/login"))
}

func TestRegister_FailureShortCircuits(t *testing.T) {
	m, srv, store := newManager(t)

	err := m.Register(context.Background(), api.RegisterRequest{
		Username: "bob",
		Email:    "bob2@example.com",
		Password: "s3cretpw",
	})
	require.Error(t, err)
	assert.Equal(t, "Username already registered", err.Error())
	assert.Zero(t, srv.Hits("POST /auth/login"))
	assert.Zero(t, store.Len())

	srv.FailNext("POST /auth/register", http.StatusInternalServerError, "")
	err = m.Register(context.Background(), api.RegisterRequest{Username: "erin", Email: "e@example.com", Password: "s3cretpw"})
	assert.Equal(t, MsgRegistrationFailed, err.Error())
}

// =============================================================================
// LOGOUT & REFRESH
// =============================================================================

func TestLogout_ClearsEverythingWithoutNetwork(t *testing.T) {
	m, srv, store := newManager(t)
	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	before := srv.TotalHits()

	m.Logout()

	s := m.Snapshot()
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User)
	assert.Empty(t, s.RefreshToken)
	assert.Zero(t, store.Len())
	assert.Equal(t, before, srv.TotalHits())
}

func TestRefresh_NoStoredTokenSkipsNetwork(t *testing.T) {
	m, srv, _ := newManager(t)

	assert.False(t, m.Refresh(context.Background()))
	assert.Zero(t, srv.TotalHits())
}

func TestRefresh_InvalidTokenLogsOut(t *testing.T) {
	m, _, store := newManager(t)
	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	require.NoError(t, store.Set(tokenstore.RefreshTokenKey, "expired"))

	assert.False(t, m.Refresh(context.Background()))

	s := m.Snapshot()
	assert.Nil(t, s.User)
	assert.False(t, s.Authenticated())
	assert.Zero(t, store.Len())
}

func TestRefresh_NetworkFailureLogsOut(t *testing.T) {
	m, srv, store := newManager(t)
	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	srv.DropNext("POST /auth/refresh")

	assert.False(t, m.Refresh(context.Background()))
	assert.False(t, m.Authenticated())
	assert.Zero(t, store.Len())
}

func TestRefresh_ReplacesPairKeepsIdentity(t *testing.T) {
	m, _, store := newManager(t)
	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	before := m.Snapshot()

	require.True(t, m.Refresh(context.Background()))

	after := m.Snapshot()
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
	assert.Equal(t, after.AccessToken, stored(t, store, tokenstore.AccessTokenKey))
	assert.Equal(t, after.RefreshToken, stored(t, store, tokenstore.RefreshTokenKey))
	assert.Equal(t, before.User, after.User)
}

// =============================================================================
// STARTUP RESOLUTION
// =============================================================================

func TestResolve_AdoptsStoredSession(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("bob", "hunter22")
	access, refresh := srv.IssueTokens("bob")
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(tokenstore.AccessTokenKey, access))
	require.NoError(t, store.Set(tokenstore.RefreshTokenKey, refresh))

	m := NewManager(api.NewClient(srv.APIURL()).WithTokenStore(store), store, logging.Discard())
	assert.Equal(t, access, m.Snapshot().AccessToken, "stored token preloaded")
	assert.Equal(t, Initializing, m.Loading())

	m.Resolve(context.Background())

	s := m.Snapshot()
	assert.Equal(t, Ready, s.Loading)
	assert.Equal(t, access, s.AccessToken)
	assert.Equal(t, "bob", s.Username())
}

func TestResolve_ExpiredAccessRefreshes(t *testing.T) {
	m, srv, store := newManager(t)
	access, refresh := srv.IssueTokens("bob")
	srv.Revoke(access)
	require.NoError(t, store.Set(tokenstore.AccessTokenKey, access))
	require.NoError(t, store.Set(tokenstore.RefreshTokenKey, refresh))

	m.Resolve(context.Background())

	s := m.Snapshot()
	assert.Equal(t, Ready, s.Loading)
	assert.True(t, s.Authenticated())
	assert.NotEqual(t, access, s.AccessToken)
	assert.Equal(t, s.AccessToken, stored(t, store, tokenstore.AccessTokenKey))
	assert.Equal(t, s.RefreshToken, stored(t, store, tokenstore.RefreshTokenKey))
	assert.Equal(t, 1, srv.Hits("POST /auth/refresh"))
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name   string
		inject func(srv *apitest.Server, access, refresh string)
	}{
		{"401 and refresh rejected", func(srv *apitest.Server, access, refresh string) {
			srv.Revoke(access)
			srv.Revoke(refresh)
		}},
		{"server error", func(srv *apitest.Server, _, _ string) {
			srv.FailAlways("GET /auth/me", http.StatusInternalServerError, "boom")
		}},
		{"forbidden", func(srv *apitest.Server, _, _ string) {
			srv.FailAlways("GET /auth/me", http.StatusForbidden, "Not authenticated")
		}},
		{"network", func(srv *apitest.Server, _, _ string) {
			srv.DropAlways("GET /auth/me")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, srv, store := newManager(t)
			access, refresh := srv.IssueTokens("bob")
			require.NoError(t, store.Set(tokenstore.AccessTokenKey, access))
			require.NoError(t, store.Set(tokenstore.RefreshTokenKey, refresh))
			tt.inject(srv, access, refresh)

			m.Resolve(context.Background())

			s := m.Snapshot()
			assert.Equal(t, Ready, s.Loading)
			assert.False(t, s.Authenticated())
			assert.Nil(t, s.User)
			assert.Zero(t, store.Len())
		})
	}
}

func TestResolve_NoTokensNoNetwork(t *testing.T) {
	m, srv, _ := newManager(t)

	m.Resolve(context.Background())

	assert.Equal(t, Ready, m.Loading())
	assert.False(t, m.Authenticated())
	assert.Zero(t, srv.TotalHits())
}

func TestResolve_RunsOnceAndReadiesOnce(t *testing.T) {
	m, srv, store := newManager(t)
	access, refresh := srv.IssueTokens("bob")
	require.NoError(t, store.Set(tokenstore.AccessTokenKey, access))
	require.NoError(t, store.Set(tokenstore.RefreshTokenKey, refresh))

	var readyTransitions int32
	last := Initializing
	var mu sync.Mutex
	m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if last == Initializing && s.Loading == Ready {
			atomic.AddInt32(&readyTransitions, 1)
		}
		last = s.Loading
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Resolve(context.Background())
		}()
	}
	wg.Wait()
	m.Resolve(context.Background())

	assert.Equal(t, 1, srv.Hits("GET /auth/me"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&readyTransitions))
	assert.Equal(t, Ready, m.Loading())
}

// =============================================================================
// SERIALIZATION
// =============================================================================

func TestOperations_AreSerialized(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	store := tokenstore.NewMemory()
	fb := &fakeBackend{
		login: func(api.Credentials) (*api.TokenPair, error) {
			close(entered)
			<-release
			return &api.TokenPair{AccessToken: "A", RefreshToken: "R"}, nil
		},
		me: func(string) (*api.UserProfile, error) {
			return &api.UserProfile{ID: "u1", Username: "bob"}, nil
		},
	}
	m := NewManager(fb, store, logging.Discard())

	loginDone := make(chan error, 1)
	go func() { loginDone <- m.Login(context.Background(), "bob", "pw") }()
	<-entered

	logoutDone := make(chan struct{})
	go func() {
		m.Logout()
		close(logoutDone)
	}()

	select {
	case <-logoutDone:
		t.Fatal("Logout ran while Login was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// Readers are not blocked by the in-flight login.
	assert.False(t, m.Snapshot().Authenticated())

	close(release)
	require.NoError(t, <-loginDone)
	<-logoutDone

	assert.False(t, m.Authenticated(), "logout applied after login completed")
	assert.Zero(t, store.Len())
}

// =============================================================================
// WHOAMI & SUBSCRIPTIONS
// =============================================================================

func TestWhoami(t *testing.T) {
	m, srv, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Whoami(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, m.Login(ctx, "bob", "hunter22"))
	srv.Revoke(m.Snapshot().AccessToken)

	user, err := m.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, 1, srv.Hits("POST /auth/refresh"))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	m, _, _ := newManager(t)

	var calls int32
	unsubscribe := m.Subscribe(func(State) { atomic.AddInt32(&calls, 1) })

	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	got := atomic.LoadInt32(&calls)
	assert.Positive(t, got)

	unsubscribe()
	m.Logout()
	assert.Equal(t, got, atomic.LoadInt32(&calls))
}

func TestLoading_String(t *testing.T) {
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "ready", Ready.String())
}
