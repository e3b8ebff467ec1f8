// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// DefaultMaxConversations is the retention limit used by NewStore callers
// that do not configure one.
const DefaultMaxConversations = 100

// =============================================================================
// TYPES
// =============================================================================

// StoredConversation is a chat transcript saved on disk.
type StoredConversation struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Server    string    `json:"server,omitempty"`
	Username  string    `json:"username,omitempty"`
	FileID    string    `json:"file_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []StoredMessage `json:"messages"`
}

// StoredMessage is one transcript entry.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Failed marks an assistant message that reports a failed send.
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ConversationMeta is the listing view of a transcript.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Username     string    `json:"username,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// ErrConversationNotFound is returned when no transcript matches.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrAmbiguousReference is returned by Find when an ID prefix matches more
// than one transcript.
var ErrAmbiguousReference = errors.New("conversation reference is ambiguous")

// =============================================================================
// STORE
// =============================================================================

// Store keeps transcripts as one JSON file each under Dir.
type Store struct {
	// Dir holds <id>.json files.
	Dir string

	// MaxConversations caps how many transcripts are kept; the least
	// recently updated are removed first. Zero means unlimited.
	MaxConversations int
}

// NewStore creates the directory if needed and returns a store over it.
func NewStore(dir string, maxConversations int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create conversation dir: %w", err)
	}
	return &Store{Dir: dir, MaxConversations: maxConversations}, nil
}

// Save writes conv, assigning an ID and summary when missing, and returns
// the ID.
func (s *Store) Save(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = NewID()
	}
	if conv.Summary == "" {
		conv.Summary = summarize(conv.Messages)
	}
	conv.UpdatedAt = time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}
	if err := util.WriteFileAtomic(s.path(conv.ID), data, 0o600); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.prune()
	}
	return conv.ID, nil
}

// Load reads one transcript by exact ID.
func (s *Store) Load(id string) (*StoredConversation, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, ErrConversationNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &conv, nil
}

// Find resolves a user-typed reference: a 1-based position in List order,
// an exact ID or a unique ID prefix.
func (s *Store) Find(ref string) (*StoredConversation, error) {
	ref = strings.TrimSpace(ref)
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(metas) {
			return nil, ErrConversationNotFound
		}
		return s.Load(metas[n-1].ID)
	}

	for _, m := range metas {
		if m.ID == ref {
			return s.Load(ref)
		}
	}
	var match string
	for _, m := range metas {
		if ref != "" && strings.HasPrefix(m.ID, ref) {
			if match != "" {
				return nil, ErrAmbiguousReference
			}
			match = m.ID
		}
	}
	if match == "" {
		return nil, ErrConversationNotFound
	}
	return s.Load(match)
}

// List returns transcript metadata, most recently updated first. Files that
// cannot be decoded are skipped.
func (s *Store) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return []ConversationMeta{}, nil
	}
	if err != nil {
		return nil, err
	}

	metas := make([]ConversationMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		conv, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, conv.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns transcripts whose summary or any message contains query,
// case-insensitively. An empty query lists everything.
func (s *Store) Search(query string) ([]ConversationMeta, error) {
	all, err := s.List()
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var out []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) {
			out = append(out, meta)
			continue
		}
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range conv.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				out = append(out, meta)
				break
			}
		}
	}
	return out, nil
}

// Delete removes one transcript.
func (s *Store) Delete(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return ErrConversationNotFound
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrConversationNotFound
	}
	return err
}

// Clear removes every transcript and returns how many were deleted.
func (s *Store) Clear() (int, error) {
	metas, err := s.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range metas {
		if err := s.Delete(m.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) prune() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}
	// metas is newest first; drop the tail.
	for _, m := range metas[s.MaxConversations:] {
		_ = s.Delete(m.ID)
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

func NewID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func summarize(msgs []StoredMessage) string {
	for _, m := range msgs {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			return util.Truncate(util.SingleLine(m.Content), 50)
		}
	}
	return "New conversation"
}

// =============================================================================
// CONVERSATION HELPERS
// =============================================================================

// Meta returns the listing view of c.
func (c *StoredConversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:           c.ID,
		Summary:      c.Summary,
		Username:     c.Username,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		Preview:      c.Preview(),
	}
}

// Preview returns the first user message on one line, cut to 80 runes.
func (c *StoredConversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == "user" && m.Content != "" {
			return util.Truncate(util.SingleLine(m.Content), 80)
		}
	}
	return ""
}

// FormatList renders metas as a fixed-width table.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("#", 4) + util.PadRight("ID", 22) + util.PadRight("Updated", 16) + util.PadRight("Msgs", 6) + "Summary\n")
	for i, m := range metas {
		sb.WriteString(util.PadRight(strconv.Itoa(i+1), 4))
		sb.WriteString(util.PadRight(m.ID, 22))
		sb.WriteString(util.PadRight(humanize.Time(m.UpdatedAt), 16))
		sb.WriteString(util.PadRight(strconv.Itoa(m.MessageCount), 6))
		sb.WriteString(util.FitWidth(m.Summary, 40))
		sb.WriteString("\n")
	}
	return sb.String()
}
