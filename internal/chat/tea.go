// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pdfchat-tui/internal/util"
)

// UpdatedMsg is sent to the program whenever the conversation changes.
type UpdatedMsg struct {
	Snapshot Snapshot
}

// Forward delivers conversation changes to p as UpdatedMsgs, in version
// order. A snapshot that reaches the subscriber after a newer one is
// dropped.
func (s *Store) Forward(p *tea.Program) (unsubscribe func()) {
	return forward(s, func(snap Snapshot) { p.Send(UpdatedMsg{Snapshot: snap}) })
}

func forward(s *Store, send func(Snapshot)) func() {
	relay := util.NewRelay(send)

	var mu sync.Mutex
	var last uint64
	unsub := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Version <= last {
			return
		}
		last = snap.Version
		relay.Push(snap)
	})

	return func() {
		unsub()
		relay.Close()
	}
}
