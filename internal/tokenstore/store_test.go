// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T, dir string) Store
}

var backends = []backend{
	{"memory", func(t *testing.T, dir string) Store { return NewMemory() }},
	{"file", func(t *testing.T, dir string) Store {
		s, err := OpenFile(filepath.Join(dir, "tokens.json"))
		require.NoError(t, err)
		return s
	}},
	{"sqlite", func(t *testing.T, dir string) Store {
		s, err := OpenSQLite(filepath.Join(dir, "session.db"))
		require.NoError(t, err)
		return s
	}},
}

func TestStore_ReadAfterWrite(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			defer s.Close()

			_, err := s.Get(AccessTokenKey)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(AccessTokenKey, "A"))
			require.NoError(t, s.Set(RefreshTokenKey, "R"))

			v, err := s.Get(AccessTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "A", v)
			v, err = s.Get(RefreshTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "R", v)

			require.NoError(t, s.Set(AccessTokenKey, "A2"))
			v, err = s.Get(AccessTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "A2", v)

			require.NoError(t, s.Delete(AccessTokenKey))
			require.NoError(t, s.Delete(AccessTokenKey), "deleting twice is fine")
			_, err = s.Get(AccessTokenKey)
			assert.ErrorIs(t, err, ErrNotFound)

			v, err = Lookup(s, AccessTokenKey)
			require.NoError(t, err)
			assert.Empty(t, v)
		})
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	for _, b := range backends[1:] {
		t.Run(b.name, func(t *testing.T) {
			dir := t.TempDir()
			s := b.open(t, dir)
			require.NoError(t, s.Set(RefreshTokenKey, "refresh-1"))
			require.NoError(t, s.Close())

			s = b.open(t, dir)
			defer s.Close()
			v, err := s.Get(RefreshTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "refresh-1", v)
		})
	}
}

func TestFileStore_PermissionsAndCleanup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	s, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(AccessTokenKey, "secret"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Delete(AccessTokenKey))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty store removes its file")
}

func TestOpenFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("FILE", filepath.Join(dir, "t.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open("sqlite", filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("keychain", "")
	assert.Error(t, err)
}
