// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
)

// instantSender answers every message immediately.
type instantSender struct{}

func (instantSender) SendMessage(context.Context, api.ChatRequest) (*api.ChatReply, error) {
	return &api.ChatReply{Message: "pong"}, nil
}

// recorder keeps the last UpdatedMsg a program handled.
type recorder struct {
	mu        sync.Mutex
	last      Snapshot
	regressed int
}

func (r *recorder) snapshot() (Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.regressed
}

type recordModel struct{ rec *recorder }

func (m recordModel) Init() tea.Cmd { return nil }

func (m recordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if u, ok := msg.(UpdatedMsg); ok {
		m.rec.mu.Lock()
		if u.Snapshot.Version < m.rec.last.Version {
			m.rec.regressed++
		}
		m.rec.last = u.Snapshot
		m.rec.mu.Unlock()
	}
	return m, nil
}

func (m recordModel) View() string { return "" }

func TestForward_ProgramEndsOnSettledState(t *testing.T) {
	s := newTestStore(instantSender{})
	rec := &recorder{}

	p := tea.NewProgram(recordModel{rec: rec},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	t.Cleanup(func() {
		p.Quit()
		<-done
	})

	stop := s.Forward(p)
	defer stop()

	for i := 0; i < 300; i++ {
		require.True(t, s.Send("hi"))
		s.Wait()
	}

	want := s.Snapshot()
	require.Eventually(t, func() bool {
		got, _ := rec.snapshot()
		return got.Version == want.Version
	}, 5*time.Second, 5*time.Millisecond)

	got, regressed := rec.snapshot()
	assert.Zero(t, regressed, "program saw an older snapshot after a newer one")
	assert.False(t, got.Busy)
	assert.Zero(t, pendingCount(got.Messages))
	assert.Len(t, got.Messages, 1+2*300)
}

func TestForward_DropsStaleSnapshots(t *testing.T) {
	s := newTestStore(instantSender{})
	got := make(chan uint64, 8)
	stop := forward(s, func(snap Snapshot) { got <- snap.Version })
	defer stop()

	s.AttachFile("a")
	stale := s.Snapshot()
	s.AttachFile("b")
	s.notify(stale)
	s.AttachFile("c")

	var versions []uint64
	for len(versions) < 3 {
		select {
		case v := <-got:
			versions = append(versions, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %v, want three deliveries", versions)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, versions)

	select {
	case v := <-got:
		t.Errorf("unexpected extra delivery of version %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWithContext_SwapIsSafeDuringExchange(t *testing.T) {
	sender := newGatedSender()
	s := newTestStore(sender)
	require.True(t, s.Send("first"))

	s.WithContext(context.Background())
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.True(t, msgs[2].Failed(), "swapping the context cancels exchanges started under the old one")

	close(sender.release)
	require.True(t, s.Send("second"))
	s.Wait()
	assert.False(t, s.Messages()[4].Failed())
}
