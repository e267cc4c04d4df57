package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/filestore"
	"github.com/jrsteele09/go-auth-client/sessions/sqlstore"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog/log"
)

type app struct {
	client *apiclient.Client
	auth   *auth.Service
	users  *users.Service
	in     *bufio.Reader
	out    io.Writer
	close  func() error
}

func newApp(ctx context.Context, c config.Config, in io.Reader, out io.Writer) (*app, error) {
	store, closeStore, err := openStore(c)
	if err != nil {
		return nil, err
	}

	opts := append(apiclient.OptionsFromConfig(c), apiclient.WithLogger(log.Logger))
	client, err := apiclient.New(c.GetAPIBaseURL(), store, opts...)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	a := &app{
		client: client,
		users:  users.NewService(client),
		in:     bufio.NewReader(in),
		out:    out,
		close:  closeStore,
	}
	a.auth, err = auth.NewService(client, auth.WithLogger(log.Logger), auth.WithListener(a.stateChanged))
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	if _, err := a.auth.Restore(ctx); err != nil {
		log.Err(err).Msg("ignoring unreadable stored session")
	}
	return a, nil
}

func (a *app) Close() error {
	return a.close()
}

func (a *app) stateChanged(s auth.State) {
	if !s.Authenticated {
		log.Debug().Msg("signed out")
	}
}

func openStore(c config.StorageConfig) (sessions.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.GetSessionStore() {
	case config.MemorySessionStore:
		return sessions.NewInMemoryStore(), noop, nil
	case config.SqliteSessionStore:
		if err := os.MkdirAll(filepath.Dir(c.GetSessionDSN()), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create data folder: %w", err)
		}
		s, err := sqlstore.OpenSQLite(c.GetSessionDSN())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.PostgresSessionStore:
		s, err := sqlstore.OpenPostgres(c.GetSessionDSN())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := filestore.New(c.GetSessionFile(), filestore.WithPassphrase(c.GetSessionPassphrase()))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
}
