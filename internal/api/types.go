// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Time is a timestamp that also accepts the backend's naive ISO-8601 values
// (no zone offset), which are interpreted as UTC.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// =============================================================================
// AUTH
// =============================================================================

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the account creation request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserProfile is the identity returned by /auth/me.
type UserProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	Role      string `json:"role"`
	CreatedAt Time   `json:"created_at"`
	IsActive  bool   `json:"is_active"`
}

// DisplayName returns the full name when set, otherwise the username.
func (u *UserProfile) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body of POST /chat/message.
type ChatRequest struct {
	Message string `json:"message"`
	FileID  string `json:"file_id,omitempty"`
}

// ChatReply is the assistant reply unwrapped from the response envelope.
type ChatReply struct {
	Message     string `json:"message"`
	Timestamp   Time   `json:"timestamp"`
	FileContext string `json:"file_context,omitempty"`
}

// envelope is the generic {success, message, data} response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// =============================================================================
// UPLOADS
// =============================================================================

// FileInfo is the server's metadata for an uploaded PDF.
type FileInfo struct {
	FileID           string `json:"file_id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	FileSize         int64  `json:"file_size"`
	ContentType      string `json:"content_type"`
	UploadTime       Time   `json:"upload_time"`
	UserID           string `json:"user_id"`
}

// FileList is the response of GET /uploads/pdfs.
type FileList struct {
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
}

// RecentFile is a short entry in UploadStats.
type RecentFile struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	UploadTime Time   `json:"upload_time"`
	FileSize   int64  `json:"file_size"`
}

// UploadStats is the response of GET /uploads/stats.
type UploadStats struct {
	TotalFiles     int          `json:"total_files"`
	TotalSizeBytes int64        `json:"total_size_bytes"`
	TotalSizeMB    float64      `json:"total_size_mb"`
	RecentFiles    []RecentFile `json:"recent_files"`
}

// =============================================================================
// HEALTH
// =============================================================================

// Health is the response of GET /health at the server root.
type Health struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	UploadDirExists   bool   `json:"upload_dir_exists"`
	UploadDirWritable bool   `json:"upload_dir_writable"`
	Environment       string `json:"environment"`
}
