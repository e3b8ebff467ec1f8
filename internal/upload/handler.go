// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/pdfchat-tui/internal/api"
)

// UploadedFile is a PDF the server accepted during this session.
type UploadedFile struct {
	ID         string
	Name       string
	Size       int64
	MimeType   string
	UploadedAt time.Time
}

// Error is a failed upload after validation passed.
type Error struct {
	// Message is the text to show.
	Message string

	// Status is the HTTP status for server rejections, 0 otherwise.
	Status int

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func uploadError(err error) *Error {
	if msg := api.ServerMessage(err); msg != "" {
		return &Error{Message: msg, Status: api.StatusCode(err), Err: err}
	}
	if status := api.StatusCode(err); status != 0 {
		return &Error{Message: MsgUploadFailed, Status: status, Err: err}
	}
	detail := err.Error()
	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		detail = netErr.Err.Error()
	}
	return &Error{Message: MsgUploadFailed + ": " + detail, Err: err}
}

// =============================================================================
// LIBRARY
// =============================================================================

// Library is the append-only list of files uploaded in this session.
type Library struct {
	mu    sync.RWMutex
	files []UploadedFile
}

// Add appends f.
func (l *Library) Add(f UploadedFile) {
	l.mu.Lock()
	l.files = append(l.files, f)
	l.mu.Unlock()
}

// All returns the files in upload order.
func (l *Library) All() []UploadedFile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]UploadedFile(nil), l.files...)
}

// Len returns the number of files.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.files)
}

// Reset forgets every file, e.g. when the user signs out.
func (l *Library) Reset() {
	l.mu.Lock()
	l.files = nil
	l.mu.Unlock()
}

// Latest returns the most recent upload.
func (l *Library) Latest() (UploadedFile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.files) == 0 {
		return UploadedFile{}, false
	}
	return l.files[len(l.files)-1], true
}

// =============================================================================
// HANDLER
// =============================================================================

// Backend is the subset of the API client the handler needs.
type Backend interface {
	UploadPDF(ctx context.Context, filename, contentType string, r io.Reader) (*api.FileInfo, error)
	ListFiles(ctx context.Context) (*api.FileList, error)
	GetFile(ctx context.Context, fileID string) (*api.FileInfo, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) (string, int64, error)
	DeleteFile(ctx context.Context, fileID string) error
	Stats(ctx context.Context) (*api.UploadStats, error)
}

// Handler validates and uploads PDFs and manages the uploaded ones.
type Handler struct {
	backend Backend
	logger  *slog.Logger
	library *Library
	now     func() time.Time
}

// NewHandler creates a handler with an empty library.
func NewHandler(backend Backend) *Handler {
	return &Handler{
		backend: backend,
		logger:  slog.Default(),
		library: &Library{},
		now:     time.Now,
	}
}

// WithLogger sets the logger.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Library returns the session's uploads.
func (h *Handler) Library() *Library { return h.library }

// Upload validates src and, if it passes, sends it to the server. A
// *ValidationError means nothing was sent; any other failure is an *Error.
func (h *Handler) Upload(ctx context.Context, src Source) (UploadedFile, error) {
	if err := Validate(src); err != nil {
		h.logger.Info("upload rejected locally", "name", src.Name, "size", src.Size, "mime", src.MimeType)
		return UploadedFile{}, err
	}

	rc, err := src.Open()
	if err != nil {
		return UploadedFile{}, &Error{Message: MsgUploadFailed + ": " + err.Error(), Err: err}
	}
	defer rc.Close()

	info, err := h.backend.UploadPDF(ctx, src.Name, src.MimeType, rc)
	if err != nil {
		h.logger.Warn("upload failed", "name", src.Name, "status", api.StatusCode(err), "error", err)
		return UploadedFile{}, uploadError(err)
	}

	f := UploadedFile{
		ID:         info.FileID,
		Name:       info.OriginalFilename,
		Size:       src.Size,
		MimeType:   src.MimeType,
		UploadedAt: h.now(),
	}
	if f.Name == "" {
		f.Name = src.Name
	}
	h.library.Add(f)
	h.logger.Info("uploaded", "file_id", f.ID, "size", f.Size)
	return f, nil
}

// List returns the server's files for the current user, newest first.
func (h *Handler) List(ctx context.Context) ([]api.FileInfo, error) {
	list, err := h.backend.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	if list.Files == nil {
		return []api.FileInfo{}, nil
	}
	return list.Files, nil
}

// Get returns one file's metadata.
func (h *Handler) Get(ctx context.Context, id string) (*api.FileInfo, error) {
	return h.backend.GetFile(ctx, id)
}

// Delete removes a file from the server.
func (h *Handler) Delete(ctx context.Context, id string) error {
	if err := h.backend.DeleteFile(ctx, id); err != nil {
		return err
	}
	h.logger.Info("deleted upload", "file_id", id)
	return nil
}

// Stats returns the server's upload statistics.
func (h *Handler) Stats(ctx context.Context) (*api.UploadStats, error) {
	return h.backend.Stats(ctx)
}

// Download saves a file into dir under the server's suggested name, or
// <id>.pdf when none is given, and returns the written path. The file
// appears only once complete.
func (h *Handler) Download(ctx context.Context, id, dir string) (string, int64, error) {
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	name, n, err := h.backend.DownloadFile(ctx, id, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", n, err
	}

	name = safeName(name)
	if name == "" {
		name = id + ".pdf"
	}
	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", n, err
	}
	h.logger.Info("downloaded upload", "file_id", id, "bytes", n)
	return dest, n, nil
}

func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatSize renders a byte count with binary units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Describe renders one uploaded file as a single line.
func (f UploadedFile) Describe() string {
	return fmt.Sprintf("%s (%s) uploaded %s", f.Name, FormatSize(f.Size), humanize.Time(f.UploadedAt))
}
