// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across pdfchat.
//
// # Key Functions
//
// Files:
//   - WriteFileAtomic: crash-safe write (temp file, fsync, rename)
//
// Strings:
//   - Truncate: rune-safe truncation with ellipsis
//   - FitWidth / PadRight: display-width aware layout for terminal tables
//   - NormalizeInput: NFC normalization of user-typed identifiers
//
// Concurrency:
//   - Relay: ordered, non-blocking hand-off to a single consumer goroutine
//
// # Usage
//
//	if err := util.WriteFileAtomic(path, data, 0600); err != nil {
//	    return err
//	}
//	label := util.FitWidth(name, 24)
package util
