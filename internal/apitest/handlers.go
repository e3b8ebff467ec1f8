// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey struct{}

func currentUser(r *http.Request) *User {
	u, _ := r.Context().Value(ctxKey{}).(*User)
	return u
}

// requireUser authenticates the bearer access token before next runs.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusForbidden, "Not authenticated")
			return
		}
		u, ok := s.verify(strings.TrimPrefix(auth, "Bearer "), "access")
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body"}, "msg": "invalid JSON body"}},
		})
		return false
	}
	return true
}

func validationFailed(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body", field}, "msg": msg}},
	})
}

// =============================================================================
// HEALTH
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"version":             Version,
		"upload_dir_exists":   true,
		"upload_dir_writable": true,
		"environment":         "development",
	})
}

// =============================================================================
// AUTH
// =============================================================================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	switch {
	case len(body.Username) < 3 || len(body.Username) > 50:
		validationFailed(w, "username", "ensure this value has between 3 and 50 characters")
		return
	case !strings.Contains(body.Email, "@"):
		validationFailed(w, "email", "value is not a valid email address")
		return
	case len(body.Password) < 6:
		validationFailed(w, "password", "ensure this value has at least 6 characters")
		return
	}

	u, err := s.createUser(body.Username, body.Email, body.Password, body.FullName)
	if errors.Is(err, errUserExists) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Registration failed: "+err.Error())
		return
	}
	writeEnvelope(w, http.StatusCreated, "User registered successfully", userJSON(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[body.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(body.Password)) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !u.IsActive {
		writeError(w, http.StatusBadRequest, "Account is inactive")
		return
	}

	s.writePair(w, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	u, ok := s.verify(body.RefreshToken, "refresh")
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.writePair(w, u)
}

func (s *Server) writePair(w http.ResponseWriter, u *User) {
	access, refresh, err := s.issuePair(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userJSON(currentUser(r)))
}

// =============================================================================
// CHAT
// =============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message *string `json:"message"`
		FileID  string  `json:"file_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Message == nil {
		validationFailed(w, "message", "field required")
		return
	}

	s.mu.Lock()
	gate := s.chatGate
	responder := s.responder
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	data := map[string]any{
		"message":      responder(*body.Message, body.FileID),
		"timestamp":    naive(time.Now()),
		"file_context": nil,
	}
	if body.FileID != "" {
		data["file_context"] = "Referenced file: " + body.FileID
	}
	writeEnvelope(w, http.StatusOK, "Chat message processed", data)
}

// =============================================================================
// UPLOADS
// =============================================================================

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(MaxUploadSize + 1<<20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		validationFailed(w, "file", "field required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" || !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}
	if len(data) > MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB")
		return
	}

	id := uuid.NewString()
	f := &File{
		ID:               id,
		Filename:         id + ".pdf",
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		UploadTime:       time.Now().UTC(),
		UserID:           currentUser(r).ID,
		Data:             data,
	}
	s.mu.Lock()
	s.files[id] = f
	s.fileOrder = append(s.fileOrder, id)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, fileJSON(f))
}

// userFiles returns u's uploads, newest first.
func (s *Server) userFiles(u *User) []*File {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*File
	for _, id := range s.fileOrder {
		if f := s.files[id]; f.UserID == u.ID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTime.After(out[j].UploadTime)
	})
	return out
}

func (s *Server) ownedFile(r *http.Request) (*File, bool) {
	id := chi.URLParam(r, "fileID")
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok || f.UserID != currentUser(r).ID {
		return nil, false
	}
	return f, true
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.userFiles(currentUser(r))
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, fileJSON(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out, "total_count": len(out)})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found or you don't have permission to access it")
		return
	}
	writeJSON(w, http.StatusOK, fileJSON(f))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found or you don't have permission to access it")
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.OriginalFilename))
	w.Header().Set("Content-Length", fmt.Sprint(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found or you don't have permission to delete it")
		return
	}
	s.mu.Lock()
	delete(s.files, f.ID)
	for i, id := range s.fileOrder {
		if id == f.ID {
			s.fileOrder = append(s.fileOrder[:i], s.fileOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File deleted successfully", "data": nil})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	files := s.userFiles(currentUser(r))
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	recent := make([]map[string]any, 0, 5)
	for i, f := range files {
		if i == 5 {
			break
		}
		recent = append(recent, map[string]any{
			"file_id":     f.ID,
			"filename":    f.OriginalFilename,
			"upload_time": naive(f.UploadTime),
			"file_size":   len(f.Data),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_files":      len(files),
		"total_size_bytes": total,
		"total_size_mb":    float64(int64(float64(total)/(1024*1024)*100+0.5)) / 100,
		"recent_files":     recent,
	})
}
