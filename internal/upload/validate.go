// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxSize is the largest accepted upload, 10 MiB.
	MaxSize int64 = 10 * 1024 * 1024

	// PDFMimeType is the only accepted MIME type.
	PDFMimeType = "application/pdf"
)

// User-facing validation and failure messages.
const (
	MsgNotPDF        = "Please upload a PDF file only"
	MsgTooLarge      = "File size must be less than 10MB"
	MsgUploadFailed  = "Failed to upload file"
	MsgNotAFile      = "Please choose a file, not a directory"
	MsgSourceMissing = "File not found"
)

// Validation causes; match with errors.Is.
var (
	ErrNotPDF   = errors.New(MsgNotPDF)
	ErrTooLarge = errors.New(MsgTooLarge)
)

// ValidationError is a local rejection made before any network call.
type ValidationError struct {
	Name     string
	Size     int64
	MimeType string

	// Cause is ErrNotPDF or ErrTooLarge.
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Cause.Error() }

// Unwrap returns the cause.
func (e *ValidationError) Unwrap() error { return e.Cause }

// Source is a file offered for upload.
type Source struct {
	Name     string
	Size     int64
	MimeType string

	// Open returns the file contents. It is called only after validation
	// passes.
	Open func() (io.ReadCloser, error)
}

// BytesSource wraps in-memory contents.
func BytesSource(name, mimeType string, data []byte) Source {
	return Source{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenFile describes a local file, detecting its MIME type from content.
func OpenFile(path string) (Source, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Source{}, fmt.Errorf("%s: %s", MsgSourceMissing, path)
	}
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, errors.New(MsgNotAFile)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("detect type of %s: %w", path, err)
	}

	return Source{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: mt.String(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Validate checks that src is a PDF of at most MaxSize bytes. The type
// check runs first.
func Validate(src Source) error {
	if src.MimeType != PDFMimeType {
		return &ValidationError{Name: src.Name, Size: src.Size, MimeType: src.MimeType, Cause: ErrNotPDF}
	}
	if src.Size > MaxSize {
		return &ValidationError{Name: src.Name, Size: src.Size, MimeType: src.MimeType, Cause: ErrTooLarge}
	}
	return nil
}
