// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest runs an in-process PDF Chat backend for tests.
//
// The server implements the REST contract the client depends on: JWT token
// pairs, bcrypt-checked users, chat replies and PDF storage. Tests can
// inject failures per route, hold chat replies open, revoke tokens and
// count requests.
//
//	srv := apitest.New(t)
//	srv.AddUser("bob", "hunter22")
//	client := api.NewClient(srv.APIURL())
package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// APIPrefix is the path prefix of the versioned API.
const APIPrefix = "/api/v1"

// Version is reported by the health endpoint.
const Version = "1.0.0"

// MaxUploadSize mirrors the backend's upload limit.
const MaxUploadSize = 10 * 1024 * 1024

// naiveLayout is how the backend renders timestamps: ISO-8601 without a zone.
const naiveLayout = "2006-01-02T15:04:05.000000"

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Role         string
	CreatedAt    time.Time
	IsActive     bool
	passwordHash []byte
}

// File is a stored upload.
type File struct {
	ID               string
	Filename         string
	OriginalFilename string
	ContentType      string
	UploadTime       time.Time
	UserID           string
	Data             []byte
}

type failure struct {
	status  int
	message string
	drop    bool
	once    bool
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	secret []byte

	mu         sync.Mutex
	users      map[string]*User
	files      map[string]*File
	fileOrder  []string
	revoked    map[string]bool
	failures   map[string]*failure
	hits       map[string]int
	lastAuth   map[string]string
	accessTTL  time.Duration
	refreshTTL time.Duration
	chatGate   chan struct{}
	responder  func(message, fileID string) string
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := NewServer()
	t.Cleanup(s.Close)
	return s
}

// NewServer starts a server. The caller must Close it.
func NewServer() *Server {
	s := &Server{
		secret:     []byte(uuid.NewString()),
		users:      make(map[string]*User),
		files:      make(map[string]*File),
		revoked:    make(map[string]bool),
		failures:   make(map[string]*failure),
		hits:       make(map[string]int),
		lastAuth:   make(map[string]string),
		accessTTL:  30 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		responder:  defaultResponder,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// APIURL returns the base URL of the versioned API.
func (s *Server) APIURL() string {
	return s.URL + APIPrefix
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s.handle(r, http.MethodGet, "/health", s.handleHealth)

	r.Route(APIPrefix, func(api chi.Router) {
		s.handle(api, http.MethodPost, "/auth/register", s.handleRegister)
		s.handle(api, http.MethodPost, "/auth/login", s.handleLogin)
		s.handle(api, http.MethodPost, "/auth/refresh", s.handleRefresh)

		s.handle(api, http.MethodGet, "/auth/me", s.requireUser(s.handleMe))
		s.handle(api, http.MethodPost, "/chat/message", s.requireUser(s.handleChat))
		s.handle(api, http.MethodPost, "/uploads/pdf", s.requireUser(s.handleUpload))
		s.handle(api, http.MethodGet, "/uploads/pdfs", s.requireUser(s.handleListFiles))
		s.handle(api, http.MethodGet, "/uploads/pdf/{fileID}", s.requireUser(s.handleGetFile))
		s.handle(api, http.MethodGet, "/uploads/pdf/{fileID}/download", s.requireUser(s.handleDownload))
		s.handle(api, http.MethodDelete, "/uploads/pdf/{fileID}", s.requireUser(s.handleDeleteFile))
		s.handle(api, http.MethodGet, "/uploads/stats", s.requireUser(s.handleStats))
	})
	return r
}

// handle registers h under "METHOD pattern", counting hits and applying
// injected failures before the handler runs.
func (s *Server) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	route := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		s.lastAuth[route] = req.Header.Get("Authorization")
		f := s.failures[route]
		if f != nil && f.once {
			delete(s.failures, route)
		}
		s.mu.Unlock()

		if f != nil {
			if f.drop {
				dropConnection(w)
				return
			}
			writeError(w, f.status, f.message)
			return
		}
		h(w, req)
	}))
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("apitest: response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}

// =============================================================================
// TEST CONTROLS
// =============================================================================

// AddUser registers an active account and returns it.
func (s *Server) AddUser(username, password string) *User {
	u, err := s.createUser(username, username+"@example.com", password, "")
	if err != nil {
		panic(err)
	}
	return u
}

// SetActive enables or disables an account.
func (s *Server) SetActive(username string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.IsActive = active
	}
}

// FailNext makes the next request to route answer with status and message.
// route is "METHOD /pattern", for example "POST /auth/login".
func (s *Server) FailNext(route string, status int, message string) {
	s.setFailure(route, &failure{status: status, message: message, once: true})
}

// FailAlways makes every request to route answer with status and message
// until ClearFailures.
func (s *Server) FailAlways(route string, status int, message string) {
	s.setFailure(route, &failure{status: status, message: message})
}

// DropNext closes the connection of the next request to route without a
// response, which the client sees as a transport failure. The HTTP client
// may transparently replay an idempotent request on a reused connection;
// use DropAlways for GET routes.
func (s *Server) DropNext(route string) {
	s.setFailure(route, &failure{drop: true, once: true})
}

// DropAlways closes the connection of every request to route until
// ClearFailures.
func (s *Server) DropAlways(route string) {
	s.setFailure(route, &failure{drop: true})
}

// ClearFailures removes all injected failures.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

func (s *Server) setFailure(route string, f *failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = f
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests served on all routes.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

// LastAuthorization returns the Authorization header of the most recent
// request to route.
func (s *Server) LastAuthorization(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth[route]
}

// SetTokenTTL changes the lifetime of newly issued tokens.
func (s *Server) SetTokenTTL(access, refresh time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = access
	s.refreshTTL = refresh
}

// Revoke makes token unacceptable from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// IssueTokens mints a token pair for an existing user.
func (s *Server) IssueTokens(username string) (access, refresh string) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", username))
	}
	access, refresh, err := s.issuePair(u)
	if err != nil {
		panic(err)
	}
	return access, refresh
}

// HoldChat makes chat requests block until the returned release function is
// called. Release is idempotent.
func (s *Server) HoldChat() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.chatGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.chatGate == gate {
				s.chatGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// SetChatResponder replaces the function that produces chat replies.
func (s *Server) SetChatResponder(fn func(message, fileID string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
}

// Files returns the stored uploads in upload order.
func (s *Server) Files() []*File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*File, 0, len(s.fileOrder))
	for _, id := range s.fileOrder {
		out = append(out, s.files[id])
	}
	return out
}

// =============================================================================
// TOKENS
// =============================================================================

var errUserExists = errors.New("Username already registered")

func (s *Server) createUser(username, email, password, fullName string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, errUserExists
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Role:         "user",
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
		passwordHash: hash,
	}
	s.users[username] = u
	return u, nil
}

func (s *Server) issuePair(u *User) (string, string, error) {
	s.mu.Lock()
	accessTTL, refreshTTL := s.accessTTL, s.refreshTTL
	s.mu.Unlock()

	access, err := s.sign(u, "access", accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.sign(u, "refresh", refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Server) sign(u *User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     u.Username,
		"user_id": u.ID,
		"type":    kind,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}).SignedString(s.secret)
}

// verify returns the active user a token of the given kind belongs to.
func (s *Server) verify(token, kind string) (*User, bool) {
	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		return nil, false
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != kind {
		return nil, false
	}
	username, _ := claims["sub"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || !u.IsActive {
		return nil, false
	}
	return u, true
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the backend's global error shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success":     false,
		"error":       message,
		"status_code": status,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func naive(t time.Time) string {
	return t.UTC().Format(naiveLayout)
}

func userJSON(u *User) map[string]any {
	var fullName any
	if u.FullName != "" {
		fullName = u.FullName
	}
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"full_name":  fullName,
		"role":       u.Role,
		"created_at": naive(u.CreatedAt),
		"is_active":  u.IsActive,
	}
}

func fileJSON(f *File) map[string]any {
	return map[string]any{
		"file_id":           f.ID,
		"filename":          f.Filename,
		"original_filename": f.OriginalFilename,
		"file_size":         len(f.Data),
		"content_type":      f.ContentType,
		"upload_time":       naive(f.UploadTime),
		"user_id":           f.UserID,
	}
}

func defaultResponder(message, fileID string) string {
	reply := fmt.Sprintf("I received your message: '%s'", message)
	if fileID != "" {
		return reply + fmt.Sprintf(" I also see you referenced file ID: %s.", fileID)
	}
	return reply
}
