package i18n

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	orig := getEnvVar
	getEnvVar = func(key string) string { return env[key] }
	t.Cleanup(func() { getEnvVar = orig })
}

func TestParseLocale(t *testing.T) {
	l, ok := ParseLocale(" FR ")
	assert.True(t, ok)
	assert.Equal(t, French, l)

	_, ok = ParseLocale("de")
	assert.False(t, ok)
	_, ok = ParseLocale("")
	assert.False(t, ok)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        map[string]string
		want       Locale
	}{
		{"configured wins", "fr", map[string]string{"LANG": "en_US.UTF-8"}, French},
		{"LANG french", "", map[string]string{"LANG": "fr_CA.UTF-8"}, French},
		{"LC_ALL before LANG", "", map[string]string{"LC_ALL": "fr_FR", "LANG": "en_US"}, French},
		{"unsupported configured falls through", "de", map[string]string{"LANG": "fr_BE@euro"}, French},
		{"german falls back", "", map[string]string{"LANG": "de_DE.UTF-8"}, English},
		{"C locale", "", map[string]string{"LANG": "C"}, English},
		{"nothing set", "", nil, English},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			assert.Equal(t, tt.want, Detect(tt.configured))
		})
	}
}

func TestStore_T(t *testing.T) {
	s, err := New(English)
	require.NoError(t, err)

	assert.Equal(t, "Save", s.T("common.save"))
	assert.Equal(t, "Applications", s.T("desktop.appLauncher.title"))
	assert.Equal(t, "common.missing", s.T("common.missing"))
	// A table is not a string.
	assert.Equal(t, "common", s.T("common"))

	require.NoError(t, s.SetLocale(French))
	assert.Equal(t, "Enregistrer", s.T("common.save"))
	assert.Equal(t, "Stockage et fichiers", s.T("desktop.appLauncher.categories.storageFiles"))
}

func TestStore_EveryEnglishKeyIsTranslated(t *testing.T) {
	s, err := New(English)
	require.NoError(t, err)

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			path := prefix + k
			if child, ok := v.(map[string]any); ok {
				walk(path+".", child)
				continue
			}
			assert.IsType(t, "", lookup(s.tables[French], strings.Split(path, ".")), "fr is missing %s", path)
		}
	}
	walk("", s.tables[English])
}

func TestStore_Tf(t *testing.T) {
	s, err := New(English)
	require.NoError(t, err)

	assert.Equal(t, `Are you sure you want to delete user "bob"?`,
		s.Tf("userManager.messages.deleteConfirm", map[string]any{"username": "bob"}))
	assert.Equal(t, "Step 2 of 4", s.Tf("onboarding.stepOf", map[string]any{"step": 2, "total": 4}))
	assert.Equal(t, "Content for {tab} tab", s.Tf("controlPanel.contentFor", nil))
}

func TestStore_SetLocale(t *testing.T) {
	var saved []Locale
	s, err := New("xx", WithPersist(func(l Locale) error {
		saved = append(saved, l)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, English, s.Locale())

	var notified []Locale
	s.Subscribe(func(l Locale) { notified = append(notified, l) })

	require.NoError(t, s.SetLocale("fr"))
	require.NoError(t, s.SetLocale("fr"))
	assert.Equal(t, []Locale{French, French}, saved)
	assert.Equal(t, []Locale{French}, notified)

	err = s.SetLocale("de")
	assert.ErrorIs(t, err, ErrUnsupportedLocale)
	assert.Equal(t, French, s.Locale())
}

func TestStore_SetLocalePersistFailure(t *testing.T) {
	s, err := New(English, WithPersist(func(Locale) error { return errors.New("disk full") }))
	require.NoError(t, err)

	require.Error(t, s.SetLocale(French))
	assert.Equal(t, English, s.Locale())
}

func TestStore_LoadApp(t *testing.T) {
	var asked []string
	s, err := New(French, WithFetcher(func(ctx context.Context, appID, locale string) (map[string]any, error) {
		asked = append(asked, appID+"/"+locale)
		if appID == "broken" {
			return nil, errors.New("boom")
		}
		return map[string]any{"title": "Médias", "menu": map[string]any{"play": "Lire"}}, nil
	}))
	require.NoError(t, err)

	assert.Equal(t, "apps.media.title", s.T("apps.media.title"))
	require.NoError(t, s.LoadApp(context.Background(), "media"))
	assert.Equal(t, "Médias", s.T("apps.media.title"))
	assert.Equal(t, "Lire", s.T("apps.media.menu.play"))

	assert.Error(t, s.LoadApp(context.Background(), "broken"))
	assert.Equal(t, []string{"media/fr", "broken/fr"}, asked)
}

func TestStore_ReloadAppsAfterLocaleChange(t *testing.T) {
	var asked []string
	s, err := New(English, WithFetcher(func(ctx context.Context, appID, locale string) (map[string]any, error) {
		asked = append(asked, appID+"/"+locale)
		if locale == "fr" {
			return map[string]any{"title": "Médias"}, nil
		}
		return map[string]any{"title": "Media"}, nil
	}))
	require.NoError(t, err)

	require.NoError(t, s.LoadApp(context.Background(), "media"))
	assert.Equal(t, "Media", s.T("apps.media.title"))

	require.NoError(t, s.SetLocale(French))
	require.NoError(t, s.ReloadApps(context.Background()))
	assert.Equal(t, "Médias", s.T("apps.media.title"))

	// Switching back serves the cached table without refetching.
	require.NoError(t, s.SetLocale(English))
	require.NoError(t, s.ReloadApps(context.Background()))
	assert.Equal(t, "Media", s.T("apps.media.title"))
	assert.Equal(t, []string{"media/en", "media/fr"}, asked)
}

func TestStore_ReloadAppsReportsFailures(t *testing.T) {
	fail := false
	s, err := New(English, WithFetcher(func(ctx context.Context, appID, locale string) (map[string]any, error) {
		if fail {
			return nil, errors.New("offline")
		}
		return map[string]any{"title": appID}, nil
	}))
	require.NoError(t, err)
	require.NoError(t, s.LoadApp(context.Background(), "media"))

	fail = true
	require.NoError(t, s.SetLocale(French))
	assert.Error(t, s.ReloadApps(context.Background()))
	assert.Equal(t, "apps.media.title", s.T("apps.media.title"))
}
