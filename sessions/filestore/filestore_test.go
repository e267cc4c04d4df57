package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/filestore"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

func newSession(access, refresh string) sessions.Session {
	return sessions.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &users.Profile{Username: "jdoe", Email: "john.doe@example.com", Roles: []string{users.RoleUser}},
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store, err := filestore.New(filepath.Join(t.TempDir(), "nested", "session.json"))
	require.NoError(t, err)

	s, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, s.IsEmpty())
}

func TestSaveSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newSession("t1", "r1")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := filestore.New(path)
	require.NoError(t, err)
	s, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "t1", s.AccessToken)
	require.Equal(t, "r1", s.RefreshToken)
	require.Equal(t, "jdoe", s.User.Username)
}

func TestSaveReplacesWholeSession(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, newSession("t1", "r1")))
	require.NoError(t, store.Save(ctx, sessions.Session{AccessToken: "t2"}))

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sessions.Session{AccessToken: "t2"}, s)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Save(ctx, newSession("t1", "r1")))
	require.NoError(t, store.Clear(ctx))

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, s.IsEmpty())
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := filestore.New(path, filestore.WithPassphrase("correct horse"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newSession("secret-access", "secret-refresh")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-access")
	require.NotContains(t, string(raw), "jdoe")

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "secret-refresh", s.RefreshToken)

	wrong, err := filestore.New(path, filestore.WithPassphrase("battery staple"))
	require.NoError(t, err)
	_, err = wrong.Load(ctx)
	require.ErrorIs(t, err, filestore.ErrDecrypt)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	store, err := filestore.New(path)
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, autherrors.ErrCorruptSession)
}
