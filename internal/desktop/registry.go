package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/windows"
)

// Cascade offsets for newly opened windows.
const (
	cascadeOriginX = 80
	cascadeOriginY = 60
	cascadeStep    = 30
)

// ErrUnknownApp is returned for ids that are neither built in nor installed.
var ErrUnknownApp = errors.New("unknown app")

// Source lists the apps installed on the backend.
type Source interface {
	AppRegistry(ctx context.Context) ([]api.RegistryEntry, error)
}

// Registry is the built-in apps followed by the installed ones.
type Registry struct {
	mu        sync.Mutex
	source    Source
	installed []App
	logger    *slog.Logger
}

// NewRegistry creates a registry holding only the built-ins until Refresh.
// source may be nil.
func NewRegistry(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{source: source, logger: logger}
}

// Refresh replaces the installed apps with the backend's list. Built-in ids
// win over installed apps with the same id; later duplicates are dropped.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	entries, err := r.source.AppRegistry(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch app registry: %w", err)
	}

	seen := make(map[string]bool)
	for _, b := range BuiltinApps() {
		seen[b.ID] = true
	}

	installed := make([]App, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if seen[e.ID] {
			r.logger.Debug("skipping installed app shadowed by existing id", "app", e.ID)
			continue
		}
		seen[e.ID] = true
		installed = append(installed, appFromRegistry(e))
	}

	r.mu.Lock()
	r.installed = installed
	r.mu.Unlock()

	r.logger.Debug("app registry refreshed", "installed", len(installed))
	return nil
}

// Apps returns every app, built-ins first.
func (r *Registry) Apps() []App {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(BuiltinApps(), r.installed...)
}

// Lookup finds an app by id.
func (r *Registry) Lookup(id string) (App, bool) {
	for _, app := range r.Apps() {
		if app.ID == id {
			return app, true
		}
	}
	return App{}, false
}

// Search returns apps whose name or id contains query, ignoring case.
// An empty query matches everything.
func (r *Registry) Search(query string) []App {
	q := strings.ToLower(strings.TrimSpace(query))
	apps := r.Apps()
	if q == "" {
		return apps
	}
	var out []App
	for _, app := range apps {
		if strings.Contains(strings.ToLower(app.Name), q) || strings.Contains(strings.ToLower(app.ID), q) {
			out = append(out, app)
		}
	}
	return out
}

// Descriptor builds the window for app id. openCount is the number of
// windows already open and sets the cascade offset.
func (r *Registry) Descriptor(id string, openCount int) (windows.Descriptor, error) {
	app, ok := r.Lookup(id)
	if !ok {
		return windows.Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}

	width, height := app.Window.Width, app.Window.Height
	if width <= 0 {
		width = DefaultWindowWidth
	}
	if height <= 0 {
		height = DefaultWindowHeight
	}
	if openCount < 0 {
		openCount = 0
	}

	d := windows.Descriptor{
		ID:        app.ID,
		Title:     app.Name,
		Icon:      app.Icon,
		Gradient:  app.Gradient,
		Component: ResolveComponent(app.Component),
		X:         cascadeOriginX + cascadeStep*openCount,
		Y:         cascadeOriginY + cascadeStep*openCount,
		Width:     width,
		Height:    height,
	}
	if !app.Builtin {
		d.AppConfig = map[string]any{
			"appId":     app.ID,
			"component": app.Component,
			"minWidth":  app.Window.MinWidth,
			"minHeight": app.Window.MinHeight,
		}
	}
	return d, nil
}
