// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE
// =============================================================================

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayName returns the label shown next to a message.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS
// =============================================================================

// StatusKind tags the lifecycle stage of a message.
type StatusKind int

const (
	// StatusUnknown is the zero value. It is neither pending nor failed.
	StatusUnknown StatusKind = iota

	// StatusPending marks the placeholder awaiting a reply.
	StatusPending

	// StatusResolved marks a settled message with real content.
	StatusResolved

	// StatusFailed marks the assistant message standing in for a failed
	// exchange.
	StatusFailed
)

// String returns the status name.
func (k StatusKind) String() string {
	switch k {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a message's lifecycle state. Reason is set only for
// StatusFailed.
type Status struct {
	Kind   StatusKind
	Reason string
}

// Pending is the placeholder status.
func Pending() Status { return Status{Kind: StatusPending} }

// Resolved is the status of ordinary settled messages.
func Resolved() Status { return Status{Kind: StatusResolved} }

// Failed is the status of an error reply, carrying the underlying reason.
func Failed(reason string) Status { return Status{Kind: StatusFailed, Reason: reason} }

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one conversation entry.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Status    Status

	// FileContext is the server's note about a referenced PDF, if any.
	FileContext string
}

// Pending reports whether m is the placeholder awaiting a reply.
func (m Message) Pending() bool { return m.Status.Kind == StatusPending }

// Failed reports whether m reports a failed exchange.
func (m Message) Failed() bool { return m.Status.Kind == StatusFailed }

func newID() string { return uuid.NewString() }

func userMessage(content string, now time.Time) Message {
	return Message{ID: newID(), Role: RoleUser, Content: content, Timestamp: now, Status: Resolved()}
}

func placeholder(now time.Time) Message {
	return Message{ID: newID(), Role: RoleAssistant, Timestamp: now, Status: Pending()}
}
