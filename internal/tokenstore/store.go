// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenstore provides durable key/value storage for the session's
// token pair.
//
// Three backends share the Store interface:
//   - FileStore: a single JSON file written atomically with 0600 permissions
//   - SQLiteStore: a table in a local SQLite database
//   - MemoryStore: process memory only, for tests and --token-store=memory
//
// Every backend gives read-after-write consistency: a Set is visible to the
// very next Get.
package tokenstore

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed key names for the persisted token pair.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("tokenstore: key not found")

// Store is a durable string key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases resources held by the store.
	Close() error
}

// Lookup returns the value for key, treating a missing key as "".
func Lookup(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Open returns the store for the named backend. path is ignored for memory.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", backend)
	}
}
