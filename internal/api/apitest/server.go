// Package apitest runs an in-process fake of the NAS backend for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinas/console/internal/api"
)

// Request is a recorded inbound request.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          map[string]any
}

type failure struct {
	status int
	body   any
}

type account struct {
	info api.UserInfo
	hash []byte
}

// Server is a fake backend. Zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	setupDone    bool
	machineName  string
	accounts     map[string]*account // username -> account
	tokens       map[string]string   // token -> username
	registry     []api.RegistryEntry
	translations map[string]map[string]map[string]any // app -> locale -> table
	shares       []api.Share
	files        map[string][]api.FileItem
	failures     map[string]failure // "METHOD /path" -> canned error
	requests     []Request

	upgrader websocket.Upgrader
	wsMu     sync.Mutex
	conns    map[*websocket.Conn]bool
	received [][]byte
	wsOpened int
}

// New starts a fake backend. Close it with Server.Close.
func New() *Server {
	s := &Server{
		accounts:     make(map[string]*account),
		tokens:       make(map[string]string),
		translations: make(map[string]map[string]map[string]any),
		files:        make(map[string][]api.FileItem),
		failures:     make(map[string]failure),
		conns:        make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	a.HandleFunc("/setup/status", s.handleSetupStatus).Methods("GET")
	a.HandleFunc("/setup/complete", s.handleSetupComplete).Methods("POST")
	a.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	a.HandleFunc("/auth/logout", s.authed(s.handleLogout)).Methods("POST")
	a.HandleFunc("/auth/me", s.authed(s.handleMe)).Methods("GET")

	a.HandleFunc("/apps/registry", s.authed(s.handleRegistry)).Methods("GET")
	a.HandleFunc("/apps/{id}/i18n/{locale}", s.authed(s.handleTranslations)).Methods("GET")

	a.HandleFunc("/shares", s.authed(s.handleShares)).Methods("GET")
	a.HandleFunc("/shares", s.authed(s.handleCreateShare)).Methods("POST")
	a.HandleFunc("/shares/{id}", s.authed(s.handleDeleteShare)).Methods("DELETE")
	a.HandleFunc("/files", s.authed(s.handleFiles)).Methods("GET")

	a.HandleFunc("/ws", s.handleWS)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(api.RequestIDHeader),
		}
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			r.Body.Close()
			if len(data) > 0 {
				_ = json.Unmarshal(data, &rec.Body)
			}
			r.Body = io.NopCloser(bytes.NewReader(data))
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		if failing {
			delete(s.failures, r.Method+" "+r.URL.Path)
		}
		s.mu.Unlock()

		if failing {
			writeJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}
		h(w, r)
	}
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	done := s.setupDone
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.SetupStatus{IsComplete: done, NeedsSetup: !done})
}

func (s *Server) handleSetupComplete(w http.ResponseWriter, r *http.Request) {
	var req api.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid body", "code": "BAD_REQUEST"})
		return
	}

	s.mu.Lock()
	done := s.setupDone
	s.mu.Unlock()
	if done {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "Setup has already been completed",
			"code":  "SETUP_ALREADY_COMPLETE",
		})
		return
	}

	info, err := s.addAccount(req.AdminUsername, req.AdminPassword, true)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error(), "code": "INTERNAL_ERROR"})
		return
	}

	s.mu.Lock()
	s.setupDone = true
	s.machineName = req.MachineName
	token := s.issueTokenLocked(req.AdminUsername)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.AuthResponse{Token: token, User: info})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[req.Username]
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
		return
	}
	writeJSON(w, http.StatusOK, api.AuthResponse{Token: s.issueTokenLocked(req.Username), User: acct.info})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.accounts[s.tokens[token]].info)
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := append([]api.RegistryEntry{}, s.registry...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	byLocale := s.translations[vars["id"]]
	if table, ok := byLocale[vars["locale"]]; ok {
		writeJSON(w, http.StatusOK, table)
		return
	}
	if table, ok := byLocale["en"]; ok {
		writeJSON(w, http.StatusOK, table)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleShares(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	shares := append([]api.Share{}, s.shares...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, shares)
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var share api.Share
	if err := json.NewDecoder(r.Body).Decode(&share); err != nil || share.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	share.ID = uuid.New().String()
	share.Enabled = true
	s.mu.Lock()
	s.shares = append(s.shares, share)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, share)
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, share := range s.shares {
		if share.ID == id {
			s.shares = append(s.shares[:i], s.shares[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Share not found", "code": "NOT_FOUND"})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	s.mu.Lock()
	items, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Path not found"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) addAccount(username, password string, admin bool) (api.UserInfo, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return api.UserInfo{}, err
	}
	info := api.UserInfo{ID: uuid.New().String(), Username: username, IsAdmin: admin}
	s.mu.Lock()
	s.accounts[username] = &account{info: info, hash: hash}
	s.mu.Unlock()
	return info, nil
}

func (s *Server) issueTokenLocked(username string) string {
	token := "tok-" + uuid.New().String()
	s.tokens[token] = username
	return token
}

// CompleteSetup marks setup done with an admin account.
func (s *Server) CompleteSetup(username, password string) {
	_, _ = s.addAccount(username, password, true)
	s.mu.Lock()
	s.setupDone = true
	s.mu.Unlock()
}

// AddUser creates a non-admin account.
func (s *Server) AddUser(username, password string) {
	_, _ = s.addAccount(username, password, false)
}

// IssueToken returns a valid token for an existing user.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(username)
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]string)
	s.mu.Unlock()
}

// MachineName returns the name given at setup.
func (s *Server) MachineName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machineName
}

// SetRegistry sets the installed-apps list.
func (s *Server) SetRegistry(entries ...api.RegistryEntry) {
	s.mu.Lock()
	s.registry = entries
	s.mu.Unlock()
}

// SetTranslations sets an app's string table for a locale.
func (s *Server) SetTranslations(appID, locale string, table map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.translations[appID] == nil {
		s.translations[appID] = make(map[string]map[string]any)
	}
	s.translations[appID][locale] = table
}

// SetFiles sets the listing returned for path.
func (s *Server) SetFiles(path string, items ...api.FileItem) {
	s.mu.Lock()
	s.files[path] = items
	s.mu.Unlock()
}

// FailNext makes the next METHOD path request answer status with body.
func (s *Server) FailNext(method, path string, status int, body any) {
	s.mu.Lock()
	s.failures[method+" "+path] = failure{status: status, body: body}
	s.mu.Unlock()
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.requests...)
}

// LastRequest returns the most recent request matching method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
