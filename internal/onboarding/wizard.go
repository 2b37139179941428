// Package onboarding drives the first-run setup wizard: name the machine,
// create the administrator, and sign in as that administrator.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/auth"
	"github.com/pinas/console/internal/statefile"
)

const (
	// TotalSteps is welcome, machine name, admin account, summary.
	TotalSteps = 4

	// FileName holds the persisted "setup complete" flag.
	FileName = "setup-complete"

	MinPasswordLength = 8
)

// Validation errors returned by Validate.
var (
	ErrMachineNameRequired = errors.New("machine name is required")
	ErrUsernameRequired    = errors.New("administrator username is required")
	ErrPasswordTooShort    = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Config is what the wizard collects.
type Config struct {
	MachineName   string
	AdminUsername string
	AdminPassword string
}

// State is a snapshot of the wizard.
type State struct {
	Loading       bool
	SetupComplete bool
	Submitting    bool
	Step          int
	Config        Config
	Error         string
}

// Backend is the part of the API the wizard calls.
type Backend interface {
	SetupStatus(ctx context.Context) (*api.SetupStatus, error)
	CompleteSetup(ctx context.Context, req api.SetupRequest) (*api.AuthResponse, error)
}

// Session receives the administrator's session after setup.
type Session interface {
	Set(token string, user *auth.User) error
}

// Wizard is the onboarding state machine. Safe for concurrent use.
type Wizard struct {
	mu       sync.Mutex
	state    State
	flagPath string
	backend  Backend
	session  Session
	logger   *slog.Logger

	listeners    map[int]func(State)
	nextListener int
}

// New creates a wizard in the loading state; call Init before use.
func New(stateDir string, backend Backend, session Session, logger *slog.Logger) *Wizard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wizard{
		state:     State{Loading: true, Step: 1},
		flagPath:  filepath.Join(stateDir, FileName),
		backend:   backend,
		session:   session,
		logger:    logger.With("component", "onboarding"),
		listeners: make(map[int]func(State)),
	}
}

// Init loads the persisted flag and leaves the loading state.
func (w *Wizard) Init() {
	complete := w.loadFlag()
	w.update(func(s *State) {
		s.Loading = false
		s.SetupComplete = complete
	})
}

func (w *Wizard) loadFlag() bool {
	data, err := os.ReadFile(w.flagPath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "true"
}

func (w *Wizard) saveFlag(complete bool) error {
	return statefile.Write(w.flagPath, []byte(strconv.FormatBool(complete)))
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetStep jumps to step.
func (w *Wizard) SetStep(step int) {
	w.update(func(s *State) {
		s.Step = step
	})
}

// Next advances one step. It does not stop at TotalSteps.
func (w *Wizard) Next() {
	w.update(func(s *State) {
		s.Step++
	})
}

// Prev goes back one step, never below 1.
func (w *Wizard) Prev() {
	w.update(func(s *State) {
		s.Step = max(1, s.Step-1)
	})
}

// UpdateConfig merges the non-empty fields of patch.
func (w *Wizard) UpdateConfig(patch Config) {
	w.update(func(s *State) {
		if patch.MachineName != "" {
			s.Config.MachineName = patch.MachineName
		}
		if patch.AdminUsername != "" {
			s.Config.AdminUsername = patch.AdminUsername
		}
		if patch.AdminPassword != "" {
			s.Config.AdminPassword = patch.AdminPassword
		}
	})
}

// Validate checks the collected config.
func (w *Wizard) Validate() error {
	return validate(w.State().Config)
}

func validate(c Config) error {
	switch {
	case strings.TrimSpace(c.MachineName) == "":
		return ErrMachineNameRequired
	case strings.TrimSpace(c.AdminUsername) == "":
		return ErrUsernameRequired
	case len(c.AdminPassword) < MinPasswordLength:
		return ErrPasswordTooShort
	}
	return nil
}

// Submit completes setup on the backend. On success the administrator's
// session is stored and the flag persisted. On failure the message is kept
// in State.Error and the step is left unchanged.
func (w *Wizard) Submit(ctx context.Context) error {
	cfg := w.State().Config
	if err := validate(cfg); err != nil {
		w.fail(err.Error())
		return err
	}

	w.update(func(s *State) {
		s.Submitting = true
		s.Error = ""
	})

	resp, err := w.backend.CompleteSetup(ctx, api.SetupRequest{
		MachineName:   strings.TrimSpace(cfg.MachineName),
		AdminUsername: strings.TrimSpace(cfg.AdminUsername),
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		w.logger.Warn("setup failed", "error", err)
		w.fail(api.PublicMessage(err))
		return fmt.Errorf("setup failed: %w", err)
	}

	if err := w.session.Set(resp.Token, auth.UserFromAPI(resp.User)); err != nil {
		w.fail(err.Error())
		return fmt.Errorf("failed to store session: %w", err)
	}
	if err := w.saveFlag(true); err != nil {
		w.logger.Warn("failed to persist setup flag", "path", w.flagPath, "error", err)
	}

	w.logger.Info("setup complete", "machine", cfg.MachineName, "admin", resp.User.Username)
	w.update(func(s *State) {
		s.Submitting = false
		s.SetupComplete = true
		s.Config.AdminPassword = ""
	})
	return nil
}

func (w *Wizard) fail(msg string) {
	w.update(func(s *State) {
		s.Submitting = false
		s.Error = msg
	})
}

// CheckRemote asks the backend whether setup was already done elsewhere and
// adopts its answer when it says so.
func (w *Wizard) CheckRemote(ctx context.Context) (bool, error) {
	status, err := w.backend.SetupStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch setup status: %w", err)
	}
	if status.IsComplete {
		if err := w.saveFlag(true); err != nil {
			w.logger.Warn("failed to persist setup flag", "path", w.flagPath, "error", err)
		}
		w.update(func(s *State) {
			s.SetupComplete = true
		})
	}
	return status.IsComplete, nil
}

// Reset returns the wizard to its first step and persists "not complete".
func (w *Wizard) Reset() error {
	err := w.saveFlag(false)
	w.update(func(s *State) {
		*s = State{Step: 1}
	})
	return err
}

// Subscribe calls fn with the state after every change.
func (w *Wizard) Subscribe(fn func(State)) func() {
	w.mu.Lock()
	id := w.nextListener
	w.nextListener++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *Wizard) update(fn func(*State)) {
	w.mu.Lock()
	fn(&w.state)
	snap := w.state
	listeners := make([]func(State), 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
