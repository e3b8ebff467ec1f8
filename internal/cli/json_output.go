// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.
//
// Every command prints exactly one JSONResponse on stdout in JSON mode;
// human-readable text goes to stderr or is suppressed.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data is the command-specific payload.
	Data interface{} `json:"data"`

	// Error is null on success.
	Error *string `json:"error"`

	// Timestamp is RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// String returns the compact encoding.
func (r *JSONResponse) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"failed to marshal JSON response"}`
	}
	return string(data)
}

// =============================================================================
// COMMAND PAYLOADS
// =============================================================================

// VersionData is the payload of "version".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// SessionData describes the current session for login, whoami and status.
type SessionData struct {
	Authenticated bool             `json:"authenticated"`
	User          *api.UserProfile `json:"user,omitempty"`
	TokenStore    string           `json:"token_store"`
}

// AskData is the payload of "ask".
type AskData struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	FileID      string    `json:"file_id,omitempty"`
	FileContext string    `json:"file_context,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// UploadData is the payload of "upload".
type UploadData struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeText string `json:"size_text"`
	MimeType string `json:"mime_type"`
}

// FilesData is the payload of "files list".
type FilesData struct {
	Files      []api.FileInfo `json:"files"`
	TotalCount int            `json:"total_count"`
}

// DownloadData is the payload of "files download".
type DownloadData struct {
	FileID string `json:"file_id"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
}

// StatusData is the payload of "status".
type StatusData struct {
	APIURL    string      `json:"api_url"`
	Reachable bool        `json:"reachable"`
	Health    *api.Health `json:"health,omitempty"`
	Error     string      `json:"error,omitempty"`
	Session   SessionData `json:"session"`
	LatencyMS int64       `json:"latency_ms"`
}

// HistoryData is the payload of "history list".
type HistoryData struct {
	Conversations []storage.ConversationMeta `json:"conversations"`
}

// ConfigData is the payload of "config show".
type ConfigData struct {
	Path   string      `json:"path"`
	Config interface{} `json:"config"`
}
