// Package filestore persists the session as a single JSON document. Writes go
// to a temporary file that is renamed over the target, so readers observe
// either the previous session or the new one.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

const filePerm = 0o600

type Store struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

var _ sessions.Store = (*Store)(nil)

type Option func(*Store)

// WithPassphrase encrypts the document at rest.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.passphrase = []byte(passphrase)
		}
	}
}

func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filestore.New] create data folder: %w", err)
	}
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return sessions.Session{}, nil
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("[filestore.Load] %w", err)
	}

	if s.passphrase != nil {
		if data, err = open(s.passphrase, data); err != nil {
			return sessions.Session{}, fmt.Errorf("[filestore.Load] %w", err)
		}
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return sessions.Session{}, fmt.Errorf("[filestore.Load] %w", autherrors.Join(autherrors.ErrCorruptSession, err))
	}
	return sessions.FromEntries(entries)
}

func (s *Store) Save(_ context.Context, session sessions.Session) error {
	entries, err := session.Entries()
	if err != nil {
		return fmt.Errorf("[filestore.Save] %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("[filestore.Save] %w", err)
	}
	if s.passphrase != nil {
		if data, err = seal(s.passphrase, data); err != nil {
			return fmt.Errorf("[filestore.Save] %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("[filestore.Save] %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[filestore.Clear] %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
