// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds a conversation with the assistant.
//
// A Store starts with the assistant greeting. Send appends the user's
// message and a pending assistant placeholder right away, then posts the
// message from a goroutine. When the request settles, Reconcile drops the
// placeholder and appends exactly one terminal message: the reply, or an
// apology that names the failure. At most one message is ever pending.
//
// # Usage
//
//	store := chat.NewStore(client).WithLogger(logger)
//	store.Subscribe(func(s chat.Snapshot) { render(s.Messages) })
//	store.Send("What does section 3 say?")
//
// Line-mode callers block instead:
//
//	reply, ok := store.SendAndWait(ctx, "hello")
package chat
