// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/api"
)

// Reply texts shown in place of a failed exchange.
const (
	MsgServerError     = "Sorry, I encountered an error: %s"
	MsgConnectionError = "Sorry, I'm having trouble connecting. Please try again."

	unknownError = "Unknown error"
)

// Outcome is the settled result of one message exchange.
type Outcome struct {
	// ID and Timestamp identify the terminal message to append.
	ID        string
	Timestamp time.Time

	// Reply is set on success; Err otherwise.
	Reply *api.ChatReply
	Err   error
}

// Terminal builds the message that replaces the placeholder.
func (o Outcome) Terminal() Message {
	m := Message{ID: o.ID, Role: RoleAssistant, Timestamp: o.Timestamp}

	switch {
	case o.Err == nil && o.Reply != nil:
		m.Content = o.Reply.Message
		m.FileContext = o.Reply.FileContext
		m.Status = Resolved()
	case errors.Is(o.Err, api.ErrNetwork):
		m.Content = MsgConnectionError
		m.Status = Failed(o.Err.Error())
	default:
		reason := unknownError
		if msg := api.ServerMessage(o.Err); msg != "" {
			reason = msg
		} else if o.Err != nil {
			reason = o.Err.Error()
		}
		m.Content = fmt.Sprintf(MsgServerError, reason)
		m.Status = Failed(reason)
	}
	return m
}

// Reconcile returns the conversation after an exchange settles: every
// pending entry is dropped and the terminal message for o is appended.
// msgs is not modified.
func Reconcile(msgs []Message, o Outcome) []Message {
	out := make([]Message, 0, len(msgs)+1)
	for _, m := range msgs {
		if !m.Pending() {
			out = append(out, m)
		}
	}
	return append(out, o.Terminal())
}
