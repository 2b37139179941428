package shell

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/api/apitest"
	"github.com/pinas/console/internal/config"
	"github.com/pinas/console/internal/desktop"
	"github.com/pinas/console/internal/i18n"
)

func newConsole(t *testing.T, srv *apitest.Server) (*Console, string) {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	c, err := New(Options{ConfigPath: filepath.Join(dir, config.FileName), Server: srv.URL})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, dir
}

func TestConsole_Version(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	c, _ := newConsole(t, srv)
	assert.NotEmpty(t, c.GetVersion())
}

func TestConsole_LoginRefreshesRegistry(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	srv.SetRegistry(api.RegistryEntry{ID: "media", Name: "Media", Component: "Iframe"})

	c, _ := newConsole(t, srv)
	require.NoError(t, c.Start(context.Background()))
	_, ok := c.Registry().Lookup("media")
	assert.False(t, ok, "registry is not fetched while signed out")

	user, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, c.Auth().Current().Authenticated)

	_, ok = c.Registry().Lookup("media")
	assert.True(t, ok)
}

func TestConsole_StartRestoresSession(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	srv.SetRegistry(api.RegistryEntry{ID: "media", Name: "Media"})

	c, dir := newConsole(t, srv)
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	c.Close()

	again, err := New(Options{ConfigPath: filepath.Join(dir, config.FileName), Server: srv.URL})
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.Start(context.Background()))

	assert.True(t, again.Auth().Current().Authenticated)
	_, ok := again.Registry().Lookup("media")
	assert.True(t, ok)
}

func TestConsole_StartAfterRestoreSkipsRestore(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")

	c, dir := newConsole(t, srv)
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	c.Close()

	registryFetches := func() int {
		n := 0
		for _, r := range srv.Requests() {
			if r.Method == "GET" && r.Path == "/api/apps/registry" {
				n++
			}
		}
		return n
	}
	before := registryFetches()

	again, err := New(Options{ConfigPath: filepath.Join(dir, config.FileName), Server: srv.URL})
	require.NoError(t, err)
	defer again.Close()
	again.Restore(context.Background())
	require.NoError(t, again.Start(context.Background()))

	assert.True(t, again.Auth().Current().Authenticated)
	assert.Equal(t, before+1, registryFetches())
}

func TestConsole_UnauthorizedSignsOut(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")

	c, _ := newConsole(t, srv)
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	_, err = c.OpenApp(desktop.ControlPanelID)
	require.NoError(t, err)

	srv.RevokeTokens()
	_, err = c.API().Me(context.Background())
	require.True(t, api.IsUnauthorized(err))
	assert.False(t, c.Auth().Current().Authenticated)
	assert.Empty(t, c.Windows().Windows())
	assert.Empty(t, c.Windows().ActiveWindowID())

	_, sawLogout := srv.LastRequest("POST", "/api/auth/logout")
	assert.False(t, sawLogout)
}

func TestConsole_OpenApp(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	srv.SetRegistry(api.RegistryEntry{ID: "media", Name: "Media", Component: "Iframe"})
	srv.SetTranslations("media", "en", map[string]any{"title": "Media Center"})

	c, _ := newConsole(t, srv)
	require.NoError(t, c.I18n().SetLocale(i18n.English))
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)

	w, err := c.OpenApp(desktop.FileManagerID)
	require.NoError(t, err)
	assert.Equal(t, 80, w.X)
	assert.Equal(t, 100, w.ZIndex)

	w, err = c.OpenApp("media")
	require.NoError(t, err)
	assert.Equal(t, 110, w.X)
	assert.Equal(t, 90, w.Y)
	assert.Equal(t, desktop.ComponentIframeApp, w.Component)
	assert.Equal(t, "media", c.Windows().ActiveWindowID())

	require.Eventually(t, func() bool {
		return c.I18n().T("apps.media.title") == "Media Center"
	}, 2*time.Second, 10*time.Millisecond)

	// Reopening refocuses without moving.
	w, err = c.OpenApp(desktop.FileManagerID)
	require.NoError(t, err)
	assert.Equal(t, 80, w.X)
	assert.Equal(t, 102, w.ZIndex)
	assert.Len(t, c.Windows().Windows(), 2)

	_, err = c.OpenApp("missing")
	assert.ErrorIs(t, err, desktop.ErrUnknownApp)
}

func TestConsole_LocaleChangeReloadsAppTranslations(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	srv.SetRegistry(api.RegistryEntry{ID: "media", Name: "Media", Component: "Iframe"})
	srv.SetTranslations("media", "en", map[string]any{"title": "Media Center"})
	srv.SetTranslations("media", "fr", map[string]any{"title": "Centre multimédia"})

	c, _ := newConsole(t, srv)
	require.NoError(t, c.I18n().SetLocale(i18n.English))
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)

	_, err = c.OpenApp("media")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return c.I18n().T("apps.media.title") == "Media Center"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.I18n().SetLocale(i18n.French))
	require.Eventually(t, func() bool {
		return c.I18n().T("apps.media.title") == "Centre multimédia"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsole_LogoutClosesWindows(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")

	c, _ := newConsole(t, srv)
	_, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	_, err = c.OpenApp(desktop.ControlPanelID)
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.Auth().Current().Authenticated)
	assert.Empty(t, c.Windows().Windows())
	assert.Empty(t, c.Windows().ActiveWindowID())

	_, sawLogout := srv.LastRequest("POST", "/api/auth/logout")
	assert.True(t, sawLogout)
}

func TestConsole_PinApp(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c, _ := newConsole(t, srv)
	assert.ErrorIs(t, c.PinApp("missing"), desktop.ErrUnknownApp)

	require.NoError(t, c.UnpinApp(desktop.ControlPanelID))
	apps := c.DesktopApps()
	require.Len(t, apps, 1)
	assert.Equal(t, desktop.FileManagerID, apps[0].ID)

	require.NoError(t, c.PinApp(desktop.ControlPanelID))
	assert.Len(t, c.DesktopApps(), 2)
}

func TestConsole_LocaleAndThemePersist(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c, dir := newConsole(t, srv)
	require.NoError(t, c.I18n().SetLocale(i18n.French))
	require.NoError(t, c.SetTheme("light"))
	assert.Equal(t, "fr", c.Config().Locale)
	assert.Equal(t, "light", c.Config().Theme)

	cfg, err := config.NewManagerAt(filepath.Join(dir, config.FileName)).Load()
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Locale)
	assert.Equal(t, "light", cfg.Theme)

	again, err := New(Options{ConfigPath: filepath.Join(dir, config.FileName), Server: srv.URL})
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, i18n.French, again.I18n().Locale())
}

func TestConsole_TelemetryFeedsStats(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c, _ := newConsole(t, srv)
	require.NoError(t, c.Start(context.Background()))
	require.NotNil(t, c.Telemetry())
	require.Eventually(t, c.Telemetry().Connected, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Push(map[string]any{
		"type": "system.stats",
		"data": map[string]any{"cpu_usage": 7.5, "memory_usage": 50, "memory_used": 1024, "memory_total": 2048},
	}))
	require.Eventually(t, func() bool { return c.Stats().Current().CPUUsage == 7.5 }, 2*time.Second, 10*time.Millisecond)

	c.Close()
	assert.False(t, c.Telemetry().Connected())
}

func TestConsole_TelemetryDisabled(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	cfg := config.Defaults()
	cfg.Telemetry.Disabled = true
	require.NoError(t, config.NewManagerAt(path).Save(cfg))

	c, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Telemetry())
	require.NoError(t, c.Start(context.Background()))
}

func TestConsole_BadServerURL(t *testing.T) {
	keyring.MockInit()
	c, err := New(Options{
		ConfigPath: filepath.Join(t.TempDir(), config.FileName),
		Server:     "ftp://nas.local",
	})
	require.Error(t, err)
	assert.Nil(t, c)
}
