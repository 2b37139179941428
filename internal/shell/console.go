// Package shell wires the console's stores together for one session.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/auth"
	"github.com/pinas/console/internal/config"
	"github.com/pinas/console/internal/desktop"
	"github.com/pinas/console/internal/i18n"
	"github.com/pinas/console/internal/onboarding"
	"github.com/pinas/console/internal/telemetry"
	"github.com/pinas/console/internal/windows"
)

// Version is set at build time via ldflags.
var Version = "0.1.0-dev"

// Options tune New. The zero value uses ~/.pinas/config.toml.
type Options struct {
	ConfigPath string
	// Server overrides the configured backend URL.
	Server     string
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Console holds the application state.
type Console struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	settings *config.Manager
	cfgMu    sync.Mutex
	cfg      *config.ConsoleConfig

	auth          *auth.Store
	client        *api.Client
	registry      *desktop.Registry
	pinned        *desktop.Pinned
	windows       *windows.Manager
	onboarding    *onboarding.Wizard
	i18n          *i18n.Store
	stats         *telemetry.StatsStore
	notifications *telemetry.Notifications
	telemetry     *telemetry.Listener // nil when disabled

	restored          atomic.Bool
	unsubscribeLocale func()
	wg                sync.WaitGroup
}

// New loads the config and builds every store. Nothing touches the network
// until Start.
func New(opts Options) (*Console, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := config.NewManager()
	if opts.ConfigPath != "" {
		settings = config.NewManagerAt(opts.ConfigPath)
	}
	cfg, err := settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if server := strings.TrimSpace(opts.Server); server != "" {
		cfg.Server = strings.TrimRight(server, "/")
	}
	stateDir := settings.StateDir()

	c := &Console{
		logger:        logger,
		settings:      settings,
		cfg:           cfg,
		stats:         telemetry.NewStatsStore(),
		notifications: telemetry.NewNotifications(),
	}
	c.auth = auth.NewStore(stateDir, auth.WithLogger(logger))

	clientOpts := []api.Option{
		api.WithTokenSource(c.auth.Token),
		api.WithUnauthorizedHandler(c.handleUnauthorized),
		api.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	c.client = api.New(cfg.Server, clientOpts...)
	c.auth.SetRemoteLogout(c.client.Logout)

	c.registry = desktop.NewRegistry(c.client, logger)
	c.pinned = desktop.NewPinned(stateDir)
	c.windows = windows.NewManager(
		windows.WithReactivation(windows.ParseReactivationPolicy(cfg.Reactivation)),
	)
	c.onboarding = onboarding.New(stateDir, c.client, c.auth, logger)

	c.i18n, err = i18n.New(i18n.Detect(cfg.Locale),
		i18n.WithPersist(func(l i18n.Locale) error {
			return c.UpdateConfig(func(cfg *config.ConsoleConfig) { cfg.Locale = string(l) })
		}),
		i18n.WithFetcher(c.client.AppTranslations),
		i18n.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	if !cfg.Telemetry.Disabled {
		wsURL, err := telemetry.URLFor(cfg.Server)
		if err != nil {
			return nil, err
		}
		c.telemetry = telemetry.NewListener(wsURL, c.stats, c.notifications,
			telemetry.WithReconnectDelay(cfg.Telemetry.ReconnectDelay()),
			telemetry.WithLogger(logger),
		)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.unsubscribeLocale = c.i18n.Subscribe(func(i18n.Locale) { c.reloadAppTranslations() })
	return c, nil
}

// reloadAppTranslations refetches installed apps' tables for the new locale.
func (c *Console) reloadAppTranslations() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.i18n.ReloadApps(c.ctx); err != nil {
			c.logger.Debug("app translations unavailable", "error", err)
		}
	}()
}

func (c *Console) closeWindows() {
	for _, w := range c.windows.Windows() {
		c.windows.Close(w.ID)
	}
}

// handleUnauthorized runs on every 401. It only drops local state and
// closes the windows; calling the backend's logout from here would recurse
// into another 401.
func (c *Console) handleUnauthorized() {
	if !c.auth.Current().Authenticated {
		return
	}
	c.logger.Info("session expired, signing out")
	if err := c.auth.Clear(); err != nil {
		c.logger.Warn("failed to clear session", "error", err)
	}
	c.closeWindows()
}

// Start restores local state, unless Restore already ran, and starts
// telemetry.
func (c *Console) Start(ctx context.Context) error {
	if !c.restored.Load() {
		c.Restore(ctx)
	}
	if c.telemetry != nil {
		c.telemetry.Start(c.ctx)
	}
	return nil
}

// Restore loads the saved session and onboarding state and refreshes the
// app registry when signed in. Failures are logged; the console stays
// usable signed out.
func (c *Console) Restore(ctx context.Context) {
	c.restored.Store(true)
	if err := c.auth.Load(); err != nil {
		c.logger.Warn("failed to restore session", "error", err)
	}
	c.onboarding.Init()

	if c.auth.Current().Authenticated {
		if err := c.registry.Refresh(ctx); err != nil {
			c.logger.Warn("failed to refresh app registry", "error", err)
		}
	}
}

// Close stops telemetry and waits for background work.
func (c *Console) Close() {
	c.unsubscribeLocale()
	c.cancel()
	if c.telemetry != nil {
		c.telemetry.Stop()
	}
	c.wg.Wait()
}

// GetVersion returns the application version.
func (c *Console) GetVersion() string {
	return Version
}

// Login signs in and refreshes the app registry.
func (c *Console) Login(ctx context.Context, username, password string) (*auth.User, error) {
	resp, err := c.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	user := auth.UserFromAPI(resp.User)
	if err := c.auth.Set(resp.Token, user); err != nil {
		return nil, err
	}
	if err := c.registry.Refresh(ctx); err != nil {
		c.logger.Warn("failed to refresh app registry", "error", err)
	}
	return user, nil
}

// Logout signs out and closes every window.
func (c *Console) Logout(ctx context.Context) error {
	err := c.auth.Logout(ctx)
	c.closeWindows()
	return err
}

// OpenApp opens (or refocuses) the window for app id. Installed apps get
// their translations loaded in the background.
func (c *Console) OpenApp(id string) (windows.Window, error) {
	app, ok := c.registry.Lookup(id)
	if !ok {
		return windows.Window{}, fmt.Errorf("%w: %s", desktop.ErrUnknownApp, id)
	}
	d, err := c.registry.Descriptor(id, len(c.windows.Windows()))
	if err != nil {
		return windows.Window{}, err
	}
	w := c.windows.Open(d)

	if !app.Builtin {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.i18n.LoadApp(c.ctx, id); err != nil {
				c.logger.Debug("app translations unavailable", "app", id, "error", err)
			}
		}()
	}
	return w, nil
}

// PinApp adds a known app to the desktop.
func (c *Console) PinApp(id string) error {
	if _, ok := c.registry.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", desktop.ErrUnknownApp, id)
	}
	return c.pinned.Add(id)
}

// UnpinApp removes an app from the desktop.
func (c *Console) UnpinApp(id string) error {
	return c.pinned.Remove(id)
}

// DesktopApps returns the pinned apps that exist in the registry.
func (c *Console) DesktopApps() []desktop.App {
	return c.pinned.DesktopApps(c.registry)
}

// Config returns a copy of the active configuration.
func (c *Console) Config() config.ConsoleConfig {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return *c.cfg
}

// UpdateConfig applies fn to the active configuration and saves it.
func (c *Console) UpdateConfig(fn func(cfg *config.ConsoleConfig)) error {
	if err := c.settings.Update(fn); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	c.cfgMu.Lock()
	fn(c.cfg)
	c.cfgMu.Unlock()
	return nil
}

// SetTheme saves the theme preference.
func (c *Console) SetTheme(theme string) error {
	return c.UpdateConfig(func(cfg *config.ConsoleConfig) {
		cfg.Theme = config.NormalizeTheme(theme)
	})
}

func (c *Console) Auth() *auth.Store                       { return c.auth }
func (c *Console) API() *api.Client                        { return c.client }
func (c *Console) Registry() *desktop.Registry             { return c.registry }
func (c *Console) Pinned() *desktop.Pinned                 { return c.pinned }
func (c *Console) Windows() *windows.Manager               { return c.windows }
func (c *Console) Onboarding() *onboarding.Wizard          { return c.onboarding }
func (c *Console) I18n() *i18n.Store                       { return c.i18n }
func (c *Console) Stats() *telemetry.StatsStore            { return c.stats }
func (c *Console) Notifications() *telemetry.Notifications { return c.notifications }
func (c *Console) Telemetry() *telemetry.Listener          { return c.telemetry }
func (c *Console) Logger() *slog.Logger                    { return c.logger }
