// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// UploadPDF sends r as the multipart form field "file".
func (c *Client) UploadPDF(ctx context.Context, filename, contentType string, r io.Reader) (*FileInfo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload source: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var info FileInfo
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/uploads/pdf",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListFiles returns the current user's uploaded PDFs.
func (c *Client) ListFiles(ctx context.Context) (*FileList, error) {
	var list FileList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/uploads/pdfs"}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetFile returns the metadata of one uploaded PDF.
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	var info FileInfo
	if err := c.do(ctx, request{method: http.MethodGet, path: "/uploads/pdf/" + url.PathEscape(fileID)}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadFile streams the PDF's bytes to w and returns the filename the
// server suggests and the number of bytes written.
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (string, int64, error) {
	path := "/uploads/pdf/" + url.PathEscape(fileID) + "/download"
	resp, err := c.send(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", n, &NetworkError{Op: "GET " + path, Err: err}
	}

	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return filename, n, nil
}

// DeleteFile removes an uploaded PDF.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	_, err := c.doEnvelope(ctx, request{method: http.MethodDelete, path: "/uploads/pdf/" + url.PathEscape(fileID)}, nil)
	return err
}

// Stats returns upload statistics for the current user.
func (c *Client) Stats(ctx context.Context) (*UploadStats, error) {
	var stats UploadStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/uploads/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
