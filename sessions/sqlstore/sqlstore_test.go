package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/sqlstore"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	store := openStore(t, path)
	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, s.IsEmpty())

	require.NoError(t, store.Save(ctx, sessions.Session{
		AccessToken:  "t1",
		RefreshToken: "r1",
		User:         &users.Profile{Username: "jdoe", Roles: []string{users.RoleUser}},
	}))
	require.NoError(t, store.Close())

	reopened := openStore(t, path)
	s, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "t1", s.AccessToken)
	require.Equal(t, "r1", s.RefreshToken)
	require.Equal(t, "jdoe", s.User.Username)
}

func TestSQLiteStoreRotationDropsOldKeys(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	require.NoError(t, store.Save(ctx, sessions.Session{
		AccessToken:  "t1",
		RefreshToken: "r1",
		User:         &users.Profile{Username: "jdoe"},
	}))
	require.NoError(t, store.Save(ctx, sessions.Session{AccessToken: "t2"}))

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sessions.Session{AccessToken: "t2"}, s)
}

func TestSQLiteStoreClear(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	require.NoError(t, store.Save(ctx, sessions.Session{AccessToken: "t1", RefreshToken: "r1"}))
	require.NoError(t, store.Clear(ctx))

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, s.IsEmpty())
}
