package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 15 * time.Second

var errEmptyGrant = errors.New("refresh response carried no access token")

// Refresher exchanges a refresh token for a new token pair at the server.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error)
}

// ExpiredFunc is told when the session could not be recovered and has been cleared.
type ExpiredFunc func(ctx context.Context, cause error)

// Coordinator makes sure at most one refresh runs at a time. Callers that hit
// a 401 while a refresh is running queue up behind it and are released in the
// order they arrived once it settles.
type Coordinator struct {
	store     sessions.Store
	refresher Refresher
	onExpired ExpiredFunc
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *metrics.Client

	mu         sync.Mutex
	inFlight   bool
	pending    []*waiter
	generation uint64 // bumped each time a refresh settles
}

type Option func(*Coordinator)

// WithTimeout bounds each refresh call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithExpiredHandler(fn ExpiredFunc) Option {
	return func(c *Coordinator) { c.onExpired = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithMetrics(m *metrics.Client) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func NewCoordinator(store sessions.Store, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		timeout:   DefaultTimeout,
		log:       log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Grant carries the access token a rejected call should be replayed with.
type Grant struct {
	AccessToken string
	dispatched  func()
}

// Dispatched must be called once the replay has been handed to the transport
// (or abandoned). The next queued caller is held back until then, which keeps
// replays in queue order. Calling it more than once is harmless.
func (g *Grant) Dispatched() {
	if g != nil && g.dispatched != nil {
		g.dispatched()
	}
}

type outcome struct {
	accessToken string
	err         error
}

type waiter struct {
	result   chan outcome
	released chan struct{}
	once     sync.Once
}

func newWaiter() *waiter {
	return &waiter{
		result:   make(chan outcome, 1),
		released: make(chan struct{}),
	}
}

func (w *waiter) release() {
	w.once.Do(func() { close(w.released) })
}

// InFlight reports whether a refresh is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending is the number of callers queued behind the running refresh.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Renew is called after a request sent with staleToken was rejected with 401.
// It returns the token to replay with, running a refresh only when no other
// caller has already started one or finished one since staleToken was read.
func (c *Coordinator) Renew(ctx context.Context, staleToken string) (*Grant, error) {
	for {
		c.mu.Lock()
		if c.inFlight {
			w := newWaiter()
			c.pending = append(c.pending, w)
			c.metrics.WaiterQueued()
			c.mu.Unlock()
			return c.wait(ctx, w)
		}
		gen := c.generation
		c.mu.Unlock()

		// The store is read outside the lock; a refresh that settled meanwhile
		// makes the read stale, so it is repeated.
		current, err := c.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("[refresh.Renew] load session: %w", err)
		}

		c.mu.Lock()
		if c.inFlight || c.generation != gen {
			c.mu.Unlock()
			continue
		}

		// The token was rotated after the rejected request went out.
		if current.AccessToken != "" && current.AccessToken != staleToken {
			c.mu.Unlock()
			return &Grant{AccessToken: current.AccessToken}, nil
		}

		c.inFlight = true
		c.mu.Unlock()

		return c.refresh(ctx, current)
	}
}

func (c *Coordinator) wait(ctx context.Context, w *waiter) (*Grant, error) {
	select {
	case o := <-w.result:
		if o.err != nil {
			w.release()
			return nil, o.err
		}
		return &Grant{AccessToken: o.accessToken, dispatched: w.release}, nil
	case <-ctx.Done():
		w.release()
		return nil, ctx.Err()
	}
}

func (c *Coordinator) refresh(ctx context.Context, current sessions.Session) (*Grant, error) {
	// The refresh outlives the caller that triggered it: every queued caller
	// depends on its outcome.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if current.RefreshToken == "" {
		c.metrics.Refresh(metrics.RefreshNoToken)
		err := fmt.Errorf("%w: %w", autherrors.ErrSessionExpired, autherrors.ErrNoRefreshToken)
		c.fail(rctx, ctx, err)
		return nil, err
	}

	c.log.Debug().Msg("access token rejected, refreshing")

	resp, err := c.refresher.Refresh(rctx, current.RefreshToken)
	if err == nil && (resp == nil || resp.Token == "") {
		err = errEmptyGrant
	}
	if err != nil {
		c.metrics.Refresh(metrics.RefreshFailed)
		err = fmt.Errorf("%w: %w: %w", autherrors.ErrSessionExpired, autherrors.ErrRefreshFailed, err)
		c.fail(rctx, ctx, err)
		return nil, err
	}

	// Rotation: the old refresh token is dead server side and is overwritten here.
	next := current.Rotate(resp.Token, resp.RefreshToken, resp.User)
	if err := c.store.Save(rctx, next); err != nil {
		c.metrics.Refresh(metrics.RefreshFailed)
		err = fmt.Errorf("%w: %w: store rotated tokens: %w", autherrors.ErrSessionExpired, autherrors.ErrRefreshFailed, err)
		c.fail(rctx, ctx, err)
		return nil, err
	}

	c.metrics.Refresh(metrics.RefreshSucceeded)
	c.log.Debug().Int("queued", c.Pending()).Msg("access token refreshed")
	c.settle(outcome{accessToken: resp.Token})
	return &Grant{AccessToken: resp.Token}, nil
}

// fail clears the session before the flag is released so that no caller can
// start a second refresh with the refresh token that was just rejected.
func (c *Coordinator) fail(rctx, ctx context.Context, cause error) {
	if err := c.store.Clear(rctx); err != nil {
		c.log.Err(err).Msg("failed to clear session")
	}
	// Released only after the clear: a caller arriving now finds no refresh token to reuse.
	c.settle(outcome{err: cause})
	c.log.Warn().Err(cause).Msg("session expired")
	if c.onExpired != nil {
		c.onExpired(ctx, cause)
	}
}

// settle releases the flag and hands the outcome to every queued caller in
// arrival order, one at a time.
func (c *Coordinator) settle(o outcome) {
	c.mu.Lock()
	c.inFlight = false
	c.generation++
	queue := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, w := range queue {
		w.result <- o
		<-w.released
		c.metrics.WaiterReleased()
	}
}
