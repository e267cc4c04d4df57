package auth

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API is the part of the API client the login state is built on.
// *apiclient.Client satisfies it.
type API interface {
	Login(ctx context.Context, req authmodel.LoginRequest) (*authmodel.AuthResponse, error)
	Register(ctx context.Context, req authmodel.RegisterRequest) (*authmodel.AuthResponse, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (sessions.Session, error)
	OnSessionExpired(fn apiclient.SessionExpiredFunc)
}

// State is a snapshot of who is logged in.
type State struct {
	User          *users.Profile
	Authenticated bool
}

// Listener is called after every change of State, including forced logouts.
type Listener func(State)

// Service holds the login state of the application: the current user and
// whether a session exists. Tokens themselves live in the session store and
// are handled by the API client.
type Service struct {
	api API
	log zerolog.Logger

	mu        sync.RWMutex
	user      *users.Profile
	listeners []Listener
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithListener registers fn for state changes.
func WithListener(fn Listener) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

func NewService(api API, options ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api is required")
	}
	s := &Service{
		api: api,
		log: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	api.OnSessionExpired(s.sessionExpired)
	return s, nil
}

// Restore picks up a session persisted by an earlier run. It makes no network
// call: a stored access token together with a stored user is enough, anything
// less leaves the service unauthenticated.
func (s *Service) Restore(ctx context.Context) (*users.Profile, error) {
	sess, err := s.api.Session(ctx)
	if err != nil {
		s.set(nil)
		return nil, errors.Wrap(err, "[Restore] failed to read stored session")
	}
	if !sess.Restorable() {
		s.set(nil)
		return nil, nil
	}
	s.log.Debug().Str("username", sess.User.Username).Msg("session restored")
	s.set(sess.User)
	return sess.User, nil
}

// Login signs in with username and password.
func (s *Service) Login(ctx context.Context, username, password string) (*users.Profile, error) {
	resp, err := s.api.Login(ctx, authmodel.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, errors.Wrap(err, "[Login] failed to sign in")
	}
	return s.signedIn(resp)
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, req authmodel.RegisterRequest) (*users.Profile, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Register] failed to register")
	}
	return s.signedIn(resp)
}

func (s *Service) signedIn(resp *authmodel.AuthResponse) (*users.Profile, error) {
	if resp.User == nil {
		s.set(nil)
		return nil, IncompleteSessionErr
	}
	s.set(resp.User)
	return resp.User, nil
}

// Logout always ends the local session. A failure to revoke the refresh
// token at the server is logged and returned, but the user is logged out.
func (s *Service) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.set(nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("server logout failed, local session cleared")
		return errors.Wrap(err, "[Logout] failed to revoke session")
	}
	return nil
}

// CurrentUser returns the signed in user, or nil.
func (s *Service) CurrentUser() *users.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Service) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// RequireUser returns the current user or NotAuthenticatedErr.
func (s *Service) RequireUser() (*users.Profile, error) {
	u := s.CurrentUser()
	if u == nil {
		return nil, NotAuthenticatedErr
	}
	return u, nil
}

func (s *Service) State() State {
	u := s.CurrentUser()
	return State{User: u, Authenticated: u != nil}
}

// sessionExpired runs when the API client gave up on refreshing. The store is
// already empty at that point; only the in-memory state is dropped here.
func (s *Service) sessionExpired(_ context.Context, cause error) {
	s.log.Info().Err(cause).Msg("session expired, signing out")
	s.set(nil)
}

func (s *Service) set(u *users.Profile) {
	s.mu.Lock()
	s.user = u
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	state := State{User: u, Authenticated: u != nil}
	for _, fn := range listeners {
		fn(state)
	}
}
