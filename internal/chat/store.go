// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
)

// Greeting is the assistant message every conversation starts with.
const Greeting = "Hello! I'm your AI assistant. How can I help you today?"

// Sender delivers one chat message to the backend.
type Sender interface {
	SendMessage(ctx context.Context, req api.ChatRequest) (*api.ChatReply, error)
}

// Snapshot is a copy of the conversation state.
type Snapshot struct {
	Messages []Message
	Busy     bool
	FileID   string

	// Version increases with every change. A snapshot with a lower
	// Version than one already seen is stale.
	Version uint64
}

// Store holds one conversation and runs its message exchanges.
//
// Send appends the user message and a pending placeholder synchronously,
// then settles the placeholder from a goroutine. Only one exchange runs at
// a time; Send calls made meanwhile are dropped.
type Store struct {
	sender Sender
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	mu         sync.Mutex
	messages   []Message
	busy       bool
	fileID     string
	generation int
	version    uint64
	convID     string
	startedAt  time.Time

	subMu     sync.Mutex
	subs      map[int]func(Snapshot)
	nextSubID int

	wg sync.WaitGroup
}

// NewStore creates a conversation holding only the greeting.
func NewStore(sender Sender) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		sender: sender,
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		subs:   make(map[int]func(Snapshot)),
	}
	s.resetLocked()
	return s
}

// WithLogger sets the logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithContext sets the parent context of later exchanges. Cancelling it
// settles them as connection failures. Exchanges already in flight are
// cancelled.
func (s *Store) WithContext(ctx context.Context) *Store {
	child, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	prev := s.cancel
	s.ctx, s.cancel = child, cancel
	s.mu.Unlock()
	prev()
	return s
}

// =============================================================================
// READERS
// =============================================================================

// Messages returns a copy of the conversation.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Messages: append([]Message(nil), s.messages...),
		Busy:     s.busy,
		FileID:   s.fileID,
		Version:  s.version,
	}
}

// changedLocked bumps the version and returns the new snapshot.
func (s *Store) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

// Busy reports whether an exchange is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// HasUserMessages reports whether anything beyond the greeting was said.
func (s *Store) HasUserMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// =============================================================================
// FILE REFERENCE
// =============================================================================

// AttachFile makes later messages reference an uploaded PDF. An empty id
// detaches.
func (s *Store) AttachFile(id string) {
	s.mu.Lock()
	s.fileID = strings.TrimSpace(id)
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// AttachedFile returns the referenced file id or "".
func (s *Store) AttachedFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

// =============================================================================
// SENDING
// =============================================================================

// Send starts an exchange for content. It returns false without changing
// anything when the trimmed content is empty or an exchange is in flight.
func (s *Store) Send(content string) bool {
	_, ok := s.start(content)
	return ok
}

// SendAndWait starts an exchange and blocks until it settles, returning
// the terminal message. It returns false when Send would, or when ctx ends
// first.
func (s *Store) SendAndWait(ctx context.Context, content string) (Message, bool) {
	done, ok := s.start(content)
	if !ok {
		return Message{}, false
	}
	select {
	case m := <-done:
		return m, true
	case <-ctx.Done():
		return Message{}, false
	}
}

func (s *Store) start(content string) (<-chan Message, bool) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, false
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Debug("send dropped, exchange in flight")
		return nil, false
	}
	now := s.now()
	s.messages = append(s.messages, userMessage(text, now), placeholder(now))
	s.busy = true
	gen := s.generation
	ctx := s.ctx
	req := api.ChatRequest{Message: text, FileID: s.fileID}
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)

	done := make(chan Message, 1)
	s.wg.Add(1)
	go s.exchange(ctx, gen, req, done)
	return done, true
}

func (s *Store) exchange(ctx context.Context, gen int, req api.ChatRequest, done chan<- Message) {
	defer s.wg.Done()

	started := time.Now()
	reply, err := s.sender.SendMessage(ctx, req)
	if err != nil {
		s.logger.Warn("chat exchange failed",
			"status", api.StatusCode(err),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err)
	}
	outcome := Outcome{ID: newID(), Timestamp: s.now(), Reply: reply, Err: err}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		done <- outcome.Terminal()
		return
	}
	s.messages = Reconcile(s.messages, outcome)
	s.busy = false
	terminal := s.messages[len(s.messages)-1]
	snap := s.changedLocked()
	s.mu.Unlock()

	s.notify(snap)
	done <- terminal
}

// Reset starts a new conversation holding only the greeting. The attached
// file is kept. An exchange still in flight is discarded when it settles.
func (s *Store) Reset() {
	s.mu.Lock()
	s.generation++
	s.resetLocked()
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) resetLocked() {
	now := s.now()
	s.messages = []Message{{
		ID:        newID(),
		Role:      RoleAssistant,
		Content:   Greeting,
		Timestamp: now,
		Status:    Resolved(),
	}}
	s.busy = false
	s.convID = storage.NewID()
	s.startedAt = now
}

// Wait blocks until every started exchange has settled.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight exchanges and waits for them to settle.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	s.wg.Wait()
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// Transcript converts the settled messages to their stored form. The ID
// stays the same until Reset, so saving repeatedly updates one file.
func (s *Store) Transcript() *storage.StoredConversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &storage.StoredConversation{
		ID:        s.convID,
		FileID:    s.fileID,
		CreatedAt: s.startedAt.UTC(),
		Messages:  make([]storage.StoredMessage, 0, len(s.messages)),
	}
	for _, m := range s.messages {
		if m.Pending() {
			continue
		}
		conv.Messages = append(conv.Messages, storage.StoredMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC(),
			Failed:    m.Failed(),
			Reason:    m.Status.Reason,
		})
	}
	return conv
}

// Restore replaces the conversation with a saved transcript so it can be
// continued. It is a no-op while an exchange is in flight.
func (s *Store) Restore(conv *storage.StoredConversation) bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return false
	}
	s.generation++
	msgs := make([]Message, 0, len(conv.Messages))
	for _, sm := range conv.Messages {
		status := Resolved()
		if sm.Failed {
			status = Failed(sm.Reason)
		}
		msgs = append(msgs, Message{
			ID:        sm.ID,
			Role:      Role(sm.Role),
			Content:   sm.Content,
			Timestamp: sm.Timestamp,
			Status:    status,
		})
	}
	s.messages = msgs
	s.fileID = conv.FileID
	s.convID = conv.ID
	if s.convID == "" {
		s.convID = storage.NewID()
	}
	s.startedAt = conv.CreatedAt
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)
	return true
}
