// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pdfchat-tui/internal/api"
)

// UploadedMsg carries the outcome of an upload started with UploadCmd.
type UploadedMsg struct {
	File UploadedFile
	Err  error
}

// FilesMsg carries the server's file list.
type FilesMsg struct {
	Files []api.FileInfo
	Err   error
}

// DeletedMsg reports a finished delete.
type DeletedMsg struct {
	ID  string
	Err error
}

// UploadCmd opens path and uploads it off the UI goroutine.
func (h *Handler) UploadCmd(ctx context.Context, path string) tea.Cmd {
	return func() tea.Msg {
		src, err := OpenFile(path)
		if err != nil {
			return UploadedMsg{Err: err}
		}
		f, err := h.Upload(ctx, src)
		return UploadedMsg{File: f, Err: err}
	}
}

// ListCmd fetches the server's file list off the UI goroutine.
func (h *Handler) ListCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		files, err := h.List(ctx)
		return FilesMsg{Files: files, Err: err}
	}
}

// DeleteCmd deletes a file off the UI goroutine.
func (h *Handler) DeleteCmd(ctx context.Context, id string) tea.Cmd {
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: h.Delete(ctx, id)}
	}
}
