package sessions

import (
	"context"
	"encoding/json"
	"slices"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
)

// Keys of the persisted key-value view of a session.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Session is the client's credential state. It is always written as a whole:
// stores never expose a token from one session next to a profile from another.
type Session struct {
	AccessToken  string         `json:"accessToken,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	User         *users.Profile `json:"user,omitempty"`
}

// Store persists the current session.
type Store interface {
	// Load returns the stored session, or an empty Session when nothing is stored.
	Load(ctx context.Context) (Session, error)

	// Save replaces the stored session in one atomic step.
	Save(ctx context.Context, session Session) error

	// Clear removes every stored key.
	Clear(ctx context.Context) error
}

// Restorable reports whether the session can be resumed without a network
// call: both an access token and a profile must be present.
func (s Session) Restorable() bool {
	return s.AccessToken != "" && s.User != nil
}

func (s Session) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}

// Rotate returns a copy carrying a new token pair. The profile is replaced
// only when the server sent one.
func (s Session) Rotate(accessToken, refreshToken string, user *users.Profile) Session {
	next := Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         s.User,
	}
	if user != nil {
		next.User = user
	}
	return next.Clone()
}

// Clone deep copies the profile so callers cannot alias stored state.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		u.Roles = slices.Clone(s.User.Roles)
		s.User = &u
	}
	return s
}

// Entries flattens the session into its key-value form. Empty values are left out.
func (s Session) Entries() (map[string]string, error) {
	entries := make(map[string]string, 3)
	if s.AccessToken != "" {
		entries[KeyAccessToken] = s.AccessToken
	}
	if s.RefreshToken != "" {
		entries[KeyRefreshToken] = s.RefreshToken
	}
	if s.User != nil {
		data, err := json.Marshal(s.User)
		if err != nil {
			return nil, autherrors.Wrapf(err, "marshal user")
		}
		entries[KeyUser] = string(data)
	}
	return entries, nil
}

// FromEntries rebuilds a session from its key-value form.
func FromEntries(entries map[string]string) (Session, error) {
	s := Session{
		AccessToken:  entries[KeyAccessToken],
		RefreshToken: entries[KeyRefreshToken],
	}
	if raw := entries[KeyUser]; raw != "" {
		var u users.Profile
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return Session{}, autherrors.Join(autherrors.ErrCorruptSession, err)
		}
		s.User = &u
	}
	return s, nil
}
