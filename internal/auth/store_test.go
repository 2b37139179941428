package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/pinas/console/internal/api"
	"github.com/pinas/console/internal/api/apitest"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	return NewStore(dir, opts...), dir
}

func TestUserFromAPI(t *testing.T) {
	assert.Equal(t, RoleAdmin, UserFromAPI(api.UserInfo{ID: "1", Username: "root", IsAdmin: true}).Role)
	u := UserFromAPI(api.UserInfo{ID: "2", Username: "bob"})
	assert.Equal(t, &User{ID: "2", Username: "bob", Role: RoleUser}, u)
}

func TestStore_StartsSignedOut(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Load())

	cur := s.Current()
	assert.False(t, cur.Authenticated)
	assert.Empty(t, s.Token())
	assert.Nil(t, cur.User)
}

func TestStore_SetPersistsAndLoads(t *testing.T) {
	s, dir := newTestStore(t)
	user := &User{ID: "1", Username: "admin", Role: RoleAdmin}
	require.NoError(t, s.Set("tok-1", user))

	assert.Equal(t, "tok-1", s.Token())
	assert.FileExists(t, filepath.Join(dir, UserFileName))

	reloaded := NewStore(dir)
	require.NoError(t, reloaded.Load())
	cur := reloaded.Current()
	assert.True(t, cur.Authenticated)
	assert.Equal(t, "tok-1", cur.Token)
	assert.Equal(t, user, cur.User)
}

func TestStore_SetWithoutUserDropsOldRecord(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.Set("tok-1", &User{ID: "1", Username: "admin", Role: RoleAdmin}))
	require.NoError(t, s.Set("tok-2", nil))

	assert.NoFileExists(t, filepath.Join(dir, UserFileName))
	assert.Nil(t, s.Current().User)

	// A token alone is a partial session and is not restored.
	reloaded := NewStore(dir)
	require.NoError(t, reloaded.Load())
	assert.False(t, reloaded.Current().Authenticated)
}

func TestStore_LoadNeedsBothTokenAndUser(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, keyring.Set(KeyringService, keyringAccount, "orphan"))

	require.NoError(t, s.Load())
	assert.False(t, s.Current().Authenticated)

	require.NoError(t, os.WriteFile(filepath.Join(dir, UserFileName), []byte("{not json"), 0600))
	require.NoError(t, s.Load())
	assert.False(t, s.Current().Authenticated)
}

func TestStore_Clear(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.Set("tok-1", &User{ID: "1", Username: "admin"}))

	require.NoError(t, s.Clear())
	assert.False(t, s.Current().Authenticated)
	assert.NoFileExists(t, filepath.Join(dir, UserFileName))

	_, err := keyring.Get(KeyringService, keyringAccount)
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	// Clearing twice is fine.
	require.NoError(t, s.Clear())
}

func TestStore_SetKeychainFailure(t *testing.T) {
	s, _ := newTestStore(t)
	keyring.MockInitWithError(errors.New("keychain locked"))
	t.Cleanup(keyring.MockInit)

	err := s.Set("tok", &User{ID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain locked")
	assert.False(t, s.Current().Authenticated)
}

func TestStore_CurrentReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("tok", &User{ID: "1", Username: "admin"}))

	cur := s.Current()
	cur.User.Username = "mutated"
	assert.Equal(t, "admin", s.Current().User.Username)
}

func TestStore_Subscribe(t *testing.T) {
	s, _ := newTestStore(t)

	var seen []bool
	unsubscribe := s.Subscribe(func(sess Session) {
		seen = append(seen, sess.Authenticated)
	})

	require.NoError(t, s.Set("tok", &User{ID: "1"}))
	require.NoError(t, s.Clear())
	unsubscribe()
	require.NoError(t, s.Set("tok", &User{ID: "1"}))

	assert.Equal(t, []bool{true, false}, seen)
}

func TestStore_LogoutAlwaysClears(t *testing.T) {
	calls := 0
	s, _ := newTestStore(t, WithRemoteLogout(func(ctx context.Context) error {
		calls++
		return errors.New("backend down")
	}))
	require.NoError(t, s.Set("tok", &User{ID: "1"}))

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, 1, calls)
	assert.False(t, s.Current().Authenticated)

	// Signed out: no remote call.
	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestStore_UnauthorizedClearsWithoutRemoteLogout(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.CompleteSetup("admin", "password123")

	s, _ := newTestStore(t)
	client := api.New(srv.URL,
		api.WithTokenSource(s.Token),
		api.WithUnauthorizedHandler(func() { _ = s.Clear() }),
	)
	s.SetRemoteLogout(client.Logout)

	require.NoError(t, s.Set("revoked-token", &User{ID: "1", Username: "admin"}))
	_, err := client.Me(context.Background())
	require.True(t, api.IsUnauthorized(err))
	assert.False(t, s.Current().Authenticated)

	_, sawLogout := srv.LastRequest("POST", "/api/auth/logout")
	assert.False(t, sawLogout)
}
