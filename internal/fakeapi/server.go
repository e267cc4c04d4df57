// Package fakeapi is an in-process stand-in for the user management server.
// It issues real HS256 tokens, rotates refresh tokens and exposes hooks that
// let tests expire tokens or hold a refresh open.
package fakeapi

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	Issuer   = "user-management-system"
	Audience = "api"

	DefaultAccessTTL = 15 * time.Minute
)

type account struct {
	password string
	profile  users.Profile
}

// Request is what the server saw of an incoming call.
type Request struct {
	Method    string
	Path      string
	Query     string
	Bearer    string
	RequestID string
	UserAgent string
}

type Server struct {
	echo      *echo.Echo
	secret    []byte
	accessTTL time.Duration

	mu       sync.Mutex
	accounts map[string]*account // by username
	access   map[string]string   // live access token -> username
	refresh  map[string]string   // live refresh token -> username
	requests []Request

	refreshGate   chan struct{}
	refreshStatus int

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

type Option func(*Server)

func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

func New(opts ...Option) *Server {
	s := &Server{
		secret:    []byte(uuid.NewString()),
		accessTTL: DefaultAccessTTL,
		accounts:  map[string]*account{},
		access:    map[string]string{},
		refresh:   map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover())
	e.Use(s.record)
	s.routes(e)
	s.echo = e
	return s
}

// Handler serves the API under /api.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// AddUser creates an account directly, bypassing registration.
func (s *Server) AddUser(username, password string, roles ...string) users.Profile {
	if len(roles) == 0 {
		roles = []string{users.RoleUser}
	}
	now := users.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	p := users.Profile{
		ID:        uuid.New(),
		Username:  username,
		Email:     username + "@example.com",
		Enabled:   true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &account{password: password, profile: p}
	return p
}

// ExpireAccessTokens makes every access token issued so far answer 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = map[string]string{}
}

// HoldRefresh blocks refresh calls until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FailRefresh makes refresh calls answer with status. Zero restores normal behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

func (s *Server) LogoutCalls() int {
	return int(s.logoutCalls.Load())
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LiveRefreshTokens is the number of refresh tokens the server would accept.
func (s *Server) LiveRefreshTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    req.Method,
			Path:      req.URL.Path,
			Query:     req.URL.RawQuery,
			Bearer:    bearer(req),
			RequestID: req.Header.Get("X-Request-ID"),
			UserAgent: req.UserAgent(),
		})
		s.mu.Unlock()
		return next(c)
	}
}
