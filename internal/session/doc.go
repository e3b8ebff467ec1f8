// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the authenticated session: the access/refresh
// token pair, its persistence and the current user's identity.
//
// # State Machine
//
//	Unauthenticated --login--> Authenticated
//	Authenticated --logout | refresh failure | restore failure--> Unauthenticated
//	Authenticated --refresh--> Authenticated (new token pair, same identity)
//
// Startup resolution runs once per Manager and moves Loading from
// Initializing to Ready exactly once.
//
// # Concurrency
//
// Session-changing operations are serialized; a second Login while one is
// in flight waits for the first to finish. Snapshot never blocks on the
// network. Subscribers run synchronously on the changing goroutine and
// must not call back into session-changing operations.
//
// # Usage
//
//	mgr := session.NewManager(client, store, logger)
//	mgr.Resolve(ctx)
//	if !mgr.Authenticated() {
//	    err := mgr.Login(ctx, "bob", password)
//	}
package session
