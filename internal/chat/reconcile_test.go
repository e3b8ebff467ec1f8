// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
)

func TestReconcile(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := []Message{
		{ID: "g", Role: RoleAssistant, Content: Greeting, Status: Resolved()},
		{ID: "u", Role: RoleUser, Content: "hi", Status: Resolved()},
		{ID: "p", Role: RoleAssistant, Status: Pending()},
	}

	tests := []struct {
		name       string
		outcome    Outcome
		wantText   string
		wantKind   StatusKind
		wantReason string
	}{
		{
			name:     "reply",
			outcome:  Outcome{Reply: &api.ChatReply{Message: "hello", FileContext: "Referenced file: f"}},
			wantText: "hello",
			wantKind: StatusResolved,
		},
		{
			name:       "rejected with message",
			outcome:    Outcome{Err: &api.APIError{Status: 400, Message: "bad input"}},
			wantText:   "Sorry, I encountered an error: bad input",
			wantKind:   StatusFailed,
			wantReason: "bad input",
		},
		{
			name:       "rejected without message",
			outcome:    Outcome{Err: &api.APIError{Status: 502}},
			wantText:   "Sorry, I encountered an error: HTTP 502 Bad Gateway",
			wantKind:   StatusFailed,
			wantReason: "HTTP 502 Bad Gateway",
		},
		{
			name:       "no reply and no error",
			outcome:    Outcome{},
			wantText:   "Sorry, I encountered an error: Unknown error",
			wantKind:   StatusFailed,
			wantReason: "Unknown error",
		},
		{
			name:     "transport",
			outcome:  Outcome{Err: &api.NetworkError{Op: "POST /chat/message", Err: errors.New("connection refused")}},
			wantText: MsgConnectionError,
			wantKind: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.outcome
			o.ID = "t"
			o.Timestamp = at

			got := Reconcile(base, o)

			require.Len(t, got, 3)
			assert.Equal(t, "g", got[0].ID)
			assert.Equal(t, "u", got[1].ID)
			term := got[2]
			assert.Equal(t, "t", term.ID)
			assert.Equal(t, at, term.Timestamp)
			assert.Equal(t, RoleAssistant, term.Role)
			assert.Equal(t, tt.wantText, term.Content)
			assert.Equal(t, tt.wantKind, term.Status.Kind)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, term.Status.Reason)
			}
		})
	}
}

func TestReconcile_DoesNotModifyInput(t *testing.T) {
	in := []Message{
		{ID: "u", Role: RoleUser, Content: "hi", Status: Resolved()},
		{ID: "p", Role: RoleAssistant, Status: Pending()},
	}
	snapshot := append([]Message(nil), in...)

	_ = Reconcile(in, Outcome{ID: "t", Reply: &api.ChatReply{Message: "x"}})

	assert.Equal(t, snapshot, in)
}

func TestReconcile_DropsEveryPendingEntry(t *testing.T) {
	in := []Message{
		{ID: "p1", Status: Pending()},
		{ID: "u", Role: RoleUser, Status: Resolved()},
		{ID: "p2", Status: Pending()},
	}

	got := Reconcile(in, Outcome{ID: "t", Reply: &api.ChatReply{Message: "x"}})

	require.Len(t, got, 2)
	assert.Equal(t, "u", got[0].ID)
	assert.Equal(t, "t", got[1].ID)
}

func TestStatusAndRole(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "resolved", StatusResolved.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", StatusKind(42).String())
	assert.Equal(t, "unknown", StatusUnknown.String())

	var zero Message
	assert.False(t, zero.Pending(), "zero message is not a placeholder")
	assert.False(t, zero.Failed())

	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())

	m := Message{Status: Failed("why")}
	assert.True(t, m.Failed())
	assert.False(t, m.Pending())
	assert.Equal(t, "why", m.Status.Reason)
}
