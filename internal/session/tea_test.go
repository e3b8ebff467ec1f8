// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
)

func TestForward_DeliversStatesInOrder(t *testing.T) {
	m, _, _ := newManager(t)
	got := make(chan State, 64)
	stop := m.forward(func(s State) { got <- s })
	defer stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Login(ctx, "bob", "hunter22"))
		m.Logout()
	}
	want := m.Snapshot().Version

	var last State
	for last.Version != want {
		select {
		case s := <-got:
			require.Greater(t, s.Version, last.Version, "states must arrive in version order")
			last = s
		case <-time.After(2 * time.Second):
			t.Fatalf("stopped at version %d, want %d", last.Version, want)
		}
	}
	assert.False(t, last.Authenticated())
}

func TestForward_DropsStaleStates(t *testing.T) {
	m, _, _ := newManager(t)
	got := make(chan uint64, 8)
	stop := m.forward(func(s State) { got <- s.Version })
	defer stop()

	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	stale := m.Snapshot()
	m.Logout()
	m.notify(stale)

	want := m.Snapshot().Version
	for {
		select {
		case v := <-got:
			require.NotEqual(t, uint64(0), v)
			if v == want {
				select {
				case extra := <-got:
					t.Fatalf("stale version %d delivered after %d", extra, want)
				case <-time.After(50 * time.Millisecond):
				}
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestState_VersionIncreases(t *testing.T) {
	m, _, _ := newManager(t)
	v0 := m.Snapshot().Version
	require.NoError(t, m.Login(context.Background(), "bob", "hunter22"))
	v1 := m.Snapshot().Version
	m.Logout()
	v2 := m.Snapshot().Version
	assert.Less(t, v0, v1)
	assert.Less(t, v1, v2)
}

func TestWhoamiCmd_ReportsOutcome(t *testing.T) {
	m, srv, _ := newManager(t)
	ctx := context.Background()

	msg := m.WhoamiCmd(ctx)().(ProfileMsg)
	assert.ErrorIs(t, msg.Err, ErrNotAuthenticated)
	assert.Nil(t, msg.User)

	require.NoError(t, m.Login(ctx, "bob", "hunter22"))
	msg = m.WhoamiCmd(ctx)().(ProfileMsg)
	require.NoError(t, msg.Err)
	assert.Equal(t, "bob", msg.User.Username)
	assert.Equal(t, "bob", msg.State.Username())

	srv.FailNext("GET /auth/me", 500, "identity service down")
	msg = m.WhoamiCmd(ctx)().(ProfileMsg)
	assert.Error(t, msg.Err)
	assert.True(t, msg.State.Authenticated(), "a failed re-fetch keeps the session")
}

// failingStore fails Set for one key.
type failingStore struct {
	*tokenstore.MemoryStore
	failKey string
}

func (f *failingStore) Set(key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(key, value)
}

func TestLogin_PartialPersistLeavesNoTokens(t *testing.T) {
	_, srv, _ := newManager(t)
	for _, key := range []string{tokenstore.AccessTokenKey, tokenstore.RefreshTokenKey} {
		t.Run(key, func(t *testing.T) {
			mem := tokenstore.NewMemory()
			require.NoError(t, mem.Set(tokenstore.AccessTokenKey, "old-A"))
			require.NoError(t, mem.Set(tokenstore.RefreshTokenKey, "old-R"))
			store := &failingStore{MemoryStore: mem, failKey: key}
			client := api.NewClient(srv.APIURL()).WithTimeout(5 * time.Second)
			m := NewManager(client, store, logging.Discard())

			err := m.Login(context.Background(), "bob", "hunter22")

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Zero(t, mem.Len(), "both tokens are removed together")
			assert.False(t, m.Authenticated())
		})
	}
}
