// Package auth holds the console's login session. The bearer token lives in
// the OS keychain and the user record in the state directory.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/statefile"
)

const (
	// KeyringService is the keychain service the token is stored under.
	KeyringService = "pinas-console"
	keyringAccount = "session-token"

	// UserFileName is the user record file inside the state directory.
	UserFileName = "user.json"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the signed-in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// UserFromAPI converts a backend user record.
func UserFromAPI(u api.UserInfo) *User {
	role := RoleUser
	if u.IsAdmin {
		role = RoleAdmin
	}
	return &User{ID: u.ID, Username: u.Username, Role: role}
}

// Session is a snapshot of the authentication state.
type Session struct {
	Authenticated bool
	Token         string
	User          *User
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Store is the session store. Safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	session      Session
	userPath     string
	remoteLogout func(context.Context) error
	logger       *slog.Logger

	listeners    map[int]func(Session)
	nextListener int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithRemoteLogout sets the call Logout makes to the backend.
func WithRemoteLogout(fn func(context.Context) error) Option {
	return func(s *Store) {
		s.remoteLogout = fn
	}
}

// NewStore creates an unauthenticated store persisting under stateDir.
func NewStore(stateDir string, opts ...Option) *Store {
	s := &Store{
		userPath:  filepath.Join(stateDir, UserFileName),
		logger:    slog.Default(),
		listeners: make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRemoteLogout replaces the backend logout call.
func (s *Store) SetRemoteLogout(fn func(context.Context) error) {
	s.mu.Lock()
	s.remoteLogout = fn
	s.mu.Unlock()
}

// Load restores a persisted session. The session is restored only when both
// the token and the user record exist; a partial session is left unloaded.
func (s *Store) Load() error {
	token, err := keyring.Get(KeyringService, keyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read token from keychain: %w", err)
	}

	data, err := os.ReadFile(s.userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read user record: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		s.logger.Warn("ignoring corrupt user record", "path", s.userPath, "error", err)
		return nil
	}

	s.update(func() {
		s.session = Session{Authenticated: true, Token: token, User: &user}
	})
	return nil
}

// Set stores a new session. A nil user removes any previous user record.
func (s *Store) Set(token string, user *User) error {
	if err := keyring.Set(KeyringService, keyringAccount, token); err != nil {
		return fmt.Errorf("failed to store token in keychain: %w", err)
	}

	if user != nil {
		data, err := json.MarshalIndent(user, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode user record: %w", err)
		}
		if err := statefile.Write(s.userPath, data); err != nil {
			return fmt.Errorf("failed to write user record: %w", err)
		}
	} else if err := os.Remove(s.userPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove user record: %w", err)
	}

	s.update(func() {
		s.session = Session{Authenticated: true, Token: token, User: user}
	})
	return nil
}

// Clear drops the session locally and from disk. It never calls the backend,
// so it is safe to use as the API client's 401 handler.
func (s *Store) Clear() error {
	var errs []error
	if err := keyring.Delete(KeyringService, keyringAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		errs = append(errs, fmt.Errorf("failed to delete token from keychain: %w", err))
	}
	if err := os.Remove(s.userPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove user record: %w", err))
	}

	s.update(func() {
		s.session = Session{}
	})
	return errors.Join(errs...)
}

// Logout tells the backend (best effort) and then clears local state.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	remote := s.remoteLogout
	authenticated := s.session.Authenticated
	s.mu.Unlock()

	if remote != nil && authenticated {
		if err := remote(ctx); err != nil {
			s.logger.Warn("remote logout failed", "error", err)
		}
	}
	return s.Clear()
}

// Token returns the bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token
}

// Current returns a copy of the session.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.clone()
}

// Subscribe calls fn with the session after every change. The returned
// function removes the listener.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.session.clone()
	listeners := make([]func(Session), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
