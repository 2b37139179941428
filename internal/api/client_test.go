package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/api/apitest"
)

func TestClient_BaseURL(t *testing.T) {
	c := api.New("http://nas.local:3000/")
	assert.Equal(t, "http://nas.local:3000", c.Server())
	assert.Equal(t, "http://nas.local:3000/api", c.BaseURL())
}

func TestClient_AttachesHeaders(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	token := srv.IssueToken("admin")

	c := api.New(srv.URL, api.WithTokenSource(func() string { return token }))
	_, err := c.Me(context.Background())
	require.NoError(t, err)

	req, ok := srv.LastRequest(http.MethodGet, "/api/auth/me")
	require.True(t, ok)
	assert.Equal(t, "Bearer "+token, req.Authorization)
	assert.NotEmpty(t, req.RequestID)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := api.New(srv.URL)
	_, err := c.SetupStatus(context.Background())
	require.NoError(t, err)

	req, ok := srv.LastRequest(http.MethodGet, "/api/setup/status")
	require.True(t, ok)
	assert.Empty(t, req.Authorization)
}

func TestClient_UnauthorizedCallsHandler(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	calls := 0
	c := api.New(srv.URL,
		api.WithTokenSource(func() string { return "stale" }),
		api.WithUnauthorizedHandler(func() { calls++ }),
	)

	_, err := c.AppRegistry(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))
	assert.Equal(t, "Unauthorized", err.Error())

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
}

func TestClient_ErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body any
		want string
	}{
		{"message wins", map[string]string{"message": "from message", "error": "from error"}, "from message"},
		{"error field", map[string]string{"error": "from error"}, "from error"},
		{"blank fields", map[string]string{"message": "  "}, "HTTP 500"},
		{"not json", nil, "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New()
			defer srv.Close()
			srv.FailNext(http.MethodGet, "/api/setup/status", http.StatusInternalServerError, tt.body)

			_, err := api.New(srv.URL).SetupStatus(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			kind, ok := api.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, api.KindServer, kind)
		})
	}
}

func TestClient_KindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   api.Kind
	}{
		{http.StatusBadRequest, api.KindBadRequest},
		{http.StatusConflict, api.KindBadRequest},
		{http.StatusForbidden, api.KindForbidden},
		{http.StatusNotFound, api.KindNotFound},
		{http.StatusTooManyRequests, api.KindTransient},
		{http.StatusServiceUnavailable, api.KindTransient},
		{http.StatusInternalServerError, api.KindServer},
	}

	for _, tt := range tests {
		srv := apitest.New()
		srv.FailNext(http.MethodGet, "/api/setup/status", tt.status, map[string]string{"error": "x"})
		_, err := api.New(srv.URL).SetupStatus(context.Background())
		srv.Close()

		kind, ok := api.KindOf(err)
		require.True(t, ok, "status %d", tt.status)
		assert.Equal(t, tt.want, kind, "status %d", tt.status)
	}
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := api.New(url, api.WithHTTPClient(api.NewHTTPClient(time.Second)))
	_, err := c.SetupStatus(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))
	assert.NotEmpty(t, api.PublicMessage(err))
}

func TestClient_EmptyBodySkipsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	err := api.New(srv.URL).Get(context.Background(), "/anything", &out)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestClient_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"` + strings.Repeat("a", api.MaxResponseBytes) + `"`))
	}))
	defer srv.Close()

	var out string
	err := api.New(srv.URL).Get(context.Background(), "/big", &out)
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))
	assert.Contains(t, err.Error(), "too large")
}

func TestClient_LoginAndLogout(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")

	c := api.New(srv.URL)
	_, err := c.Login(context.Background(), "admin", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password", err.Error())

	resp, err := c.Login(context.Background(), "admin", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.User.Username)
	assert.True(t, resp.User.IsAdmin)

	authed := api.New(srv.URL, api.WithTokenSource(func() string { return resp.Token }))
	require.NoError(t, authed.Logout(context.Background()))

	_, err = authed.Me(context.Background())
	assert.True(t, api.IsUnauthorized(err))
}

func TestClient_CompleteSetup(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	c := api.New(srv.URL)
	status, err := c.SetupStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.NeedsSetup)

	resp, err := c.CompleteSetup(context.Background(), api.SetupRequest{
		MachineName:   "pinas",
		AdminUsername: "admin",
		AdminPassword: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "pinas", srv.MachineName())

	_, err = c.CompleteSetup(context.Background(), api.SetupRequest{AdminUsername: "again", AdminPassword: "password123"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, api.StatusOf(err))
	assert.Equal(t, "Setup has already been completed", err.Error())
}

func TestClient_RegistryAndTranslations(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	token := srv.IssueToken("admin")
	srv.SetRegistry(api.RegistryEntry{ID: "media", Name: "Media", Component: "Iframe"})
	srv.SetTranslations("media", "en", map[string]any{"title": "Media"})

	c := api.New(srv.URL, api.WithTokenSource(func() string { return token }))

	entries, err := c.AppRegistry(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "media", entries[0].ID)

	// Unknown locale falls back to English on the backend.
	table, err := c.AppTranslations(context.Background(), "media", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Media", table["title"])

	table, err = c.AppTranslations(context.Background(), "unknown", "en")
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestClient_FilesEscapesPath(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	token := srv.IssueToken("admin")
	srv.SetFiles("/data/my docs", api.FileItem{Name: "a.txt", Path: "/data/my docs/a.txt", Type: "file"})

	c := api.New(srv.URL, api.WithTokenSource(func() string { return token }))
	items, err := c.Files(context.Background(), "/data/my docs")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a.txt", items[0].Name)

	_, err = c.Files(context.Background(), "/missing")
	kind, _ := api.KindOf(err)
	assert.Equal(t, api.KindNotFound, kind)
}

func TestClient_Shares(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")
	token := srv.IssueToken("admin")
	c := api.New(srv.URL, api.WithTokenSource(func() string { return token }))
	ctx := context.Background()

	share, err := c.CreateShare(ctx, "media", "/data/media", "smb")
	require.NoError(t, err)
	assert.NotEmpty(t, share.ID)
	assert.True(t, share.Enabled)

	shares, err := c.Shares(ctx)
	require.NoError(t, err)
	assert.Len(t, shares, 1)

	require.NoError(t, c.DeleteShare(ctx, share.ID))
	err = c.DeleteShare(ctx, share.ID)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))
}

func TestError_Nil(t *testing.T) {
	var e *api.Error
	assert.Equal(t, "", e.Error())
	assert.Nil(t, e.Unwrap())
	assert.Equal(t, "", api.PublicMessage(nil))
	_, ok := api.KindOf(errors.New("plain"))
	assert.False(t, ok)
}
