// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, max int) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "conversations"), max)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func conversation(userText string) *StoredConversation {
	now := time.Now().UTC()
	return &StoredConversation{
		Username: "bob",
		Messages: []StoredMessage{
			{ID: "m0", Role: "assistant", Content: "Hello! I'm your AI assistant. How can I help you today?", Timestamp: now},
			{ID: "m1", Role: "user", Content: userText, Timestamp: now},
			{ID: "m2", Role: "assistant", Content: "reply", Timestamp: now},
		},
	}
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

func TestNewStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewStore(dir, 5)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
	if store.MaxConversations != 5 {
		t.Errorf("MaxConversations = %d, want 5", store.MaxConversations)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t, 0)

	conv := conversation("What is in the quarterly report?")
	conv.FileID = "file-1"
	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(id, "conv_") {
		t.Errorf("id = %q, want conv_ prefix", id)
	}
	if conv.Summary != "What is in the quarterly report?" {
		t.Errorf("Summary = %q", conv.Summary)
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Username != "bob" || loaded.FileID != "file-1" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Messages) != 3 {
		t.Errorf("len(Messages) = %d, want 3", len(loaded.Messages))
	}

	info, err := os.Stat(filepath.Join(store.Dir, id+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestStore_SaveKeepsIDAndCreatedAt(t *testing.T) {
	store := newTestStore(t, 0)
	conv := conversation("first")
	id, _ := store.Save(conv)
	created := conv.CreatedAt

	conv.Messages = append(conv.Messages, StoredMessage{ID: "m3", Role: "user", Content: "more"})
	id2, err := store.Save(conv)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Errorf("id changed: %q -> %q", id, id2)
	}
	if !conv.CreatedAt.Equal(created) {
		t.Error("CreatedAt changed on resave")
	}
}

func TestStore_SummaryFallbackAndTruncation(t *testing.T) {
	if got := summarize(nil); got != "New conversation" {
		t.Errorf("summarize(nil) = %q", got)
	}
	long := strings.Repeat("x", 80) + "\nsecond line"
	got := summarize([]StoredMessage{{Role: "user", Content: long}})
	if len([]rune(got)) != 50 || !strings.HasSuffix(got, "...") {
		t.Errorf("summarize(long) = %q", got)
	}
}

func TestStore_LoadErrors(t *testing.T) {
	store := newTestStore(t, 0)

	for _, id := range []string{"missing", "", "../escape"} {
		if _, err := store.Load(id); !errors.Is(err, ErrConversationNotFound) {
			t.Errorf("Load(%q) err = %v, want ErrConversationNotFound", id, err)
		}
	}

	if err := os.WriteFile(filepath.Join(store.Dir, "broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("broken"); err == nil || errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Load(broken) err = %v, want decode error", err)
	}
}

// =============================================================================
// LIST / FIND / SEARCH
// =============================================================================

func TestStore_ListNewestFirstSkipsCorrupt(t *testing.T) {
	store := newTestStore(t, 0)
	first, _ := store.Save(conversation("first"))
	time.Sleep(5 * time.Millisecond)
	second, _ := store.Save(conversation("second"))
	_ = os.WriteFile(filepath.Join(store.Dir, "junk.json"), []byte("not json"), 0o600)
	_ = os.WriteFile(filepath.Join(store.Dir, "notes.txt"), []byte("ignored"), 0o600)

	metas, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	if metas[0].ID != second || metas[1].ID != first {
		t.Errorf("order = [%s %s], want [%s %s]", metas[0].ID, metas[1].ID, second, first)
	}
	if metas[0].MessageCount != 3 || metas[0].Preview != "second" {
		t.Errorf("meta = %+v", metas[0])
	}
}

func TestStore_ListMissingDir(t *testing.T) {
	store := &Store{Dir: filepath.Join(t.TempDir(), "nope")}
	metas, err := store.List()
	if err != nil || len(metas) != 0 {
		t.Errorf("List = %v, %v", metas, err)
	}
}

func TestStore_Find(t *testing.T) {
	store := newTestStore(t, 0)
	a := &StoredConversation{ID: "conv_aaaa1111", Messages: []StoredMessage{{Role: "user", Content: "a"}}}
	b := &StoredConversation{ID: "conv_aaaa2222", Messages: []StoredMessage{{Role: "user", Content: "b"}}}
	store.Save(a)
	time.Sleep(5 * time.Millisecond)
	store.Save(b)

	tests := []struct {
		ref    string
		wantID string
		err    error
	}{
		{"1", "conv_aaaa2222", nil},
		{"2", "conv_aaaa1111", nil},
		{"3", "", ErrConversationNotFound},
		{"0", "", ErrConversationNotFound},
		{"conv_aaaa1111", "conv_aaaa1111", nil},
		{"conv_aaaa2", "conv_aaaa2222", nil},
		{"conv_aaaa", "", ErrAmbiguousReference},
		{"conv_zzz", "", ErrConversationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			conv, err := store.Find(tt.ref)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if conv.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", conv.ID, tt.wantID)
			}
		})
	}
}

func TestStore_Search(t *testing.T) {
	store := newTestStore(t, 0)
	store.Save(conversation("Summarize the invoice"))
	c := conversation("unrelated")
	c.Messages[2].Content = "The INVOICE total is 42"
	store.Save(c)
	store.Save(conversation("weather"))

	got, err := store.Search("invoice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Search(invoice) = %d results, want 2", len(got))
	}

	all, _ := store.Search("")
	if len(all) != 3 {
		t.Errorf("Search(\"\") = %d results, want 3", len(all))
	}
}

// =============================================================================
// DELETE / LIMITS
// =============================================================================

func TestStore_DeleteAndClear(t *testing.T) {
	store := newTestStore(t, 0)
	id, _ := store.Save(conversation("one"))
	store.Save(conversation("two"))

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("second Delete err = %v", err)
	}

	n, err := store.Clear()
	if err != nil || n != 1 {
		t.Errorf("Clear = %d, %v; want 1, nil", n, err)
	}
	metas, _ := store.List()
	if len(metas) != 0 {
		t.Errorf("%d conversations remain", len(metas))
	}
}

func TestStore_MaxConversations(t *testing.T) {
	store := newTestStore(t, 2)
	first, _ := store.Save(conversation("1"))
	for _, text := range []string{"2", "3"} {
		time.Sleep(5 * time.Millisecond)
		store.Save(conversation(text))
	}

	metas, _ := store.List()
	if len(metas) != 2 {
		t.Fatalf("len = %d, want 2", len(metas))
	}
	if _, err := store.Load(first); !errors.Is(err, ErrConversationNotFound) {
		t.Error("oldest conversation should have been pruned")
	}
}
