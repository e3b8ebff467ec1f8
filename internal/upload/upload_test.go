// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/apitest"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func newHandler(t *testing.T) (*Handler, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("bob", "hunter22")
	access, _ := srv.IssueTokens("bob")

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Set(tokenstore.AccessTokenKey, access))
	client := api.NewClient(srv.APIURL()).WithTokenStore(tokens).WithTimeout(5 * time.Second)
	return NewHandler(client).WithLogger(logging.Discard()), srv
}

// unopenable fails the test if the contents are ever read.
func unopenable(t *testing.T, name, mimeType string, size int64) Source {
	return Source{
		Name:     name,
		Size:     size,
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			t.Error("source opened despite failing validation")
			return nil, errors.New("unreachable")
		},
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mime string
		size int64
		want error
	}{
		{"small pdf", PDFMimeType, 1024, nil},
		{"exactly the limit", PDFMimeType, MaxSize, nil},
		{"one byte over", PDFMimeType, MaxSize + 1, ErrTooLarge},
		{"15 MB pdf", PDFMimeType, 15 * 1024 * 1024, ErrTooLarge},
		{"text file", "text/plain", 10, ErrNotPDF},
		{"pdf with parameters", "application/pdf; charset=binary", 10, ErrNotPDF},
		{"no type", "", 10, ErrNotPDF},
		{"large text reports type first", "text/plain", 20 * 1024 * 1024, ErrNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Source{Name: "f", MimeType: tt.mime, Size: tt.size})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want.Error(), err.Error())
			assert.Equal(t, tt.size, vErr.Size)
		})
	}
}

func TestUpload_RejectsWithoutNetwork(t *testing.T) {
	h, srv := newHandler(t)

	_, err := h.Upload(context.Background(), unopenable(t, "big.pdf", PDFMimeType, 15*1024*1024))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, MsgTooLarge, err.Error())

	_, err = h.Upload(context.Background(), unopenable(t, "notes.txt", "text/plain; charset=utf-8", 12))
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Equal(t, MsgNotPDF, err.Error())

	assert.Zero(t, srv.TotalHits())
	assert.Zero(t, h.Library().Len())
}

// =============================================================================
// LOCAL FILES
// =============================================================================

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "report.pdf")
	txtPath := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(pdfPath, samplePDF, 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("just some text, renamed\n"), 0o600))

	src, err := OpenFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", src.Name)
	assert.Equal(t, int64(len(samplePDF)), src.Size)
	assert.Equal(t, PDFMimeType, src.MimeType)

	rc, err := src.Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, samplePDF, data)

	src, err = OpenFile(txtPath)
	require.NoError(t, err)
	assert.NotEqual(t, PDFMimeType, src.MimeType, "type comes from content, not the extension")
	assert.ErrorIs(t, Validate(src), ErrNotPDF)

	_, err = OpenFile(dir)
	assert.EqualError(t, err, MsgNotAFile)

	_, err = OpenFile(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), MsgSourceMissing))
}

// =============================================================================
// UPLOAD
// =============================================================================

func TestUpload_Success(t *testing.T) {
	h, srv := newHandler(t)

	f, err := h.Upload(context.Background(), BytesSource("report.pdf", PDFMimeType, samplePDF))
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, int64(len(samplePDF)), f.Size)
	assert.Equal(t, PDFMimeType, f.MimeType)
	assert.False(t, f.UploadedAt.IsZero())

	stored := srv.Files()
	require.Len(t, stored, 1)
	assert.Equal(t, f.ID, stored[0].ID)
	assert.True(t, bytes.Equal(samplePDF, stored[0].Data))

	latest, ok := h.Library().Latest()
	require.True(t, ok)
	assert.Equal(t, f, latest)
}

func TestUpload_LibraryIsAppendOnly(t *testing.T) {
	h, _ := newHandler(t)
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		_, err := h.Upload(context.Background(), BytesSource(name, PDFMimeType, samplePDF))
		require.NoError(t, err)
	}

	all := h.Library().All()
	require.Len(t, all, 3)
	assert.Equal(t, "a.pdf", all[0].Name)
	assert.Equal(t, "c.pdf", all[2].Name)

	all[0].Name = "mutated"
	assert.Equal(t, "a.pdf", h.Library().All()[0].Name)

	h.Library().Reset()
	assert.Zero(t, h.Library().Len())
	_, ok := h.Library().Latest()
	assert.False(t, ok)
}

func TestUpload_Failures(t *testing.T) {
	t.Run("server rejection", func(t *testing.T) {
		h, _ := newHandler(t)
		_, err := h.Upload(context.Background(), BytesSource("report.txt", PDFMimeType, samplePDF))

		var upErr *Error
		require.True(t, errors.As(err, &upErr))
		assert.Equal(t, "Only PDF files are allowed", upErr.Message)
		assert.Equal(t, http.StatusBadRequest, upErr.Status)
		assert.Zero(t, h.Library().Len())
	})

	t.Run("rejection without detail", func(t *testing.T) {
		h, srv := newHandler(t)
		srv.FailNext("POST /uploads/pdf", http.StatusInternalServerError, "")
		_, err := h.Upload(context.Background(), BytesSource("a.pdf", PDFMimeType, samplePDF))
		assert.EqualError(t, err, MsgUploadFailed)
	})

	t.Run("transport", func(t *testing.T) {
		h, srv := newHandler(t)
		srv.DropNext("POST /uploads/pdf")
		_, err := h.Upload(context.Background(), BytesSource("a.pdf", PDFMimeType, samplePDF))

		var upErr *Error
		require.True(t, errors.As(err, &upErr))
		assert.True(t, strings.HasPrefix(upErr.Message, MsgUploadFailed+": "), upErr.Message)
		assert.ErrorIs(t, err, api.ErrNetwork)
	})

	t.Run("unreadable source", func(t *testing.T) {
		h, srv := newHandler(t)
		src := Source{Name: "a.pdf", MimeType: PDFMimeType, Size: 1, Open: func() (io.ReadCloser, error) {
			return nil, os.ErrPermission
		}}
		_, err := h.Upload(context.Background(), src)
		assert.ErrorIs(t, err, os.ErrPermission)
		assert.Zero(t, srv.TotalHits())
	})
}

// =============================================================================
// FILE MANAGEMENT
// =============================================================================

func TestFileManagement(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	first, err := h.Upload(ctx, BytesSource("first.pdf", PDFMimeType, samplePDF))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := h.Upload(ctx, BytesSource("second.pdf", PDFMimeType, samplePDF))
	require.NoError(t, err)

	files, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, second.ID, files[0].FileID, "newest first")
	assert.Equal(t, "first.pdf", files[1].OriginalFilename)

	info, err := h.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(samplePDF)), info.FileSize)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, int64(2*len(samplePDF)), stats.TotalSizeBytes)

	dir := t.TempDir()
	path, n, err := h.Download(ctx, first.ID, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "first.pdf"), path)
	assert.Equal(t, int64(len(samplePDF)), n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)

	require.NoError(t, h.Delete(ctx, first.ID))
	files, _ = h.List(ctx)
	assert.Len(t, files, 1)

	err = h.Delete(ctx, first.ID)
	assert.True(t, api.IsNotFound(err))
	_, err = h.Get(ctx, first.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestDownload_FailureLeavesNoFile(t *testing.T) {
	h, _ := newHandler(t)
	dir := t.TempDir()

	_, _, err := h.Download(context.Background(), "missing", dir)
	assert.True(t, api.IsNotFound(err))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestList_Empty(t *testing.T) {
	h, _ := newHandler(t)
	files, err := h.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{MaxSize, "10 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in), "FormatSize(%d)", tt.in)
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a.pdf", safeName("a.pdf"))
	assert.Equal(t, "evil.pdf", safeName("../../evil.pdf"))
	assert.Equal(t, "x.pdf", safeName(`C:\docs\x.pdf`))
	assert.Empty(t, safeName(""))
	assert.Empty(t, safeName(".."))
}

func TestUploadedFile_Describe(t *testing.T) {
	f := UploadedFile{Name: "a.pdf", Size: 2048, UploadedAt: time.Now()}
	assert.Contains(t, f.Describe(), "a.pdf (2.0 KiB)")
}
