// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage saves chat transcripts on the local machine.
//
// The backend keeps no conversation history, so finished chats are written
// here as one JSON file per conversation, by default under
// ~/.pdfchat/conversations/.
//
// # Usage
//
//	store, err := storage.NewStore(cfg.ConversationsDir(), cfg.Storage.MaxConversations)
//	id, err := store.Save(conv)
//
//	metas, err := store.List()            // newest first
//	conv, err := store.Find("1")          // position, ID or ID prefix
package storage
