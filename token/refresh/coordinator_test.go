package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls   atomic.Int32
	gate    chan struct{} // when set, Refresh blocks until it is closed
	seen    []string
	mu      sync.Mutex
	resp    *authmodel.AuthResponse
	err     error
	started chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

type fixture struct {
	store     *sessions.InMemoryStore
	refresher *fakeRefresher
	metrics   *metrics.Client
	expired   atomic.Int32
	coord     *refresh.Coordinator
}

func setup(t *testing.T, initial sessions.Session, r *fakeRefresher, opts ...refresh.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     sessions.NewInMemoryStore(),
		refresher: r,
		metrics:   metrics.NewClient(nil),
	}
	require.NoError(t, f.store.Save(context.Background(), initial))
	opts = append([]refresh.Option{
		refresh.WithMetrics(f.metrics),
		refresh.WithExpiredHandler(func(context.Context, error) { f.expired.Add(1) }),
	}, opts...)
	f.coord = refresh.NewCoordinator(f.store, r, opts...)
	return f
}

func (f *fixture) session(t *testing.T) sessions.Session {
	t.Helper()
	s, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return s
}

func loggedIn() sessions.Session {
	return sessions.Session{
		AccessToken:  "t1",
		RefreshToken: "r1",
		User:         &users.Profile{Username: "jdoe"},
	}
}

func grant(access, refreshToken string) *authmodel.AuthResponse {
	return &authmodel.AuthResponse{Token: access, RefreshToken: refreshToken, Type: authmodel.TokenTypeBearer}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestRenewRotatesTokens(t *testing.T) {
	f := setup(t, loggedIn(), &fakeRefresher{resp: grant("t2", "r2")})

	g, err := f.coord.Renew(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t2", g.AccessToken)
	g.Dispatched()

	s := f.session(t)
	require.Equal(t, "t2", s.AccessToken)
	require.Equal(t, "r2", s.RefreshToken, "old refresh token must be replaced")
	require.Equal(t, "jdoe", s.User.Username)
	require.Equal(t, []string{"r1"}, f.refresher.seen)
	require.False(t, f.coord.InFlight())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshCount(metrics.RefreshSucceeded)))
}

func TestRenewSkipsRefreshWhenTokenAlreadyRotated(t *testing.T) {
	f := setup(t, loggedIn(), &fakeRefresher{resp: grant("t3", "r3")})

	g, err := f.coord.Renew(context.Background(), "t0")
	require.NoError(t, err)
	require.Equal(t, "t1", g.AccessToken)
	require.Zero(t, f.refresher.calls.Load())
}

func TestConcurrentRenewRefreshesOnce(t *testing.T) {
	r := &fakeRefresher{resp: grant("t2", "r2"), gate: make(chan struct{}), started: make(chan struct{})}
	f := setup(t, loggedIn(), r)

	const n = 10
	results := make(chan string, n)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g, err := f.coord.Renew(context.Background(), "t1")
		require.NoError(t, err)
		g.Dispatched()
		results <- g.AccessToken
	}()
	<-r.started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := f.coord.Renew(context.Background(), "t1")
			require.NoError(t, err)
			g.Dispatched()
			results <- g.AccessToken
		}()
	}
	waitFor(t, func() bool { return f.coord.Pending() == n-1 })

	close(r.gate)
	wg.Wait()
	close(results)

	require.EqualValues(t, 1, r.calls.Load())
	for tok := range results {
		require.Equal(t, "t2", tok)
	}
	require.Zero(t, f.coord.Pending())
}

func TestQueuedCallersReleasedInOrder(t *testing.T) {
	r := &fakeRefresher{resp: grant("t2", "r2"), gate: make(chan struct{}), started: make(chan struct{})}
	f := setup(t, loggedIn(), r)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	record := func(name string, g *refresh.Grant) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		g.Dispatched()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		g, err := f.coord.Renew(context.Background(), "t1")
		require.NoError(t, err)
		record("trigger", g)
	}()
	<-r.started

	for i, name := range []string{"A", "B", "C"} {
		i, name := i, name // per-iteration copies (go directive is 1.21)
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := f.coord.Renew(context.Background(), "t1")
			require.NoError(t, err)
			// give later waiters a head start to prove ordering does not depend on scheduling
			time.Sleep(time.Duration(3-i) * 5 * time.Millisecond)
			record(name, g)
		}()
		waitFor(t, func() bool { return f.coord.Pending() == i+1 })
	}

	close(r.gate)
	wg.Wait()

	require.Equal(t, []string{"A", "B", "C", "trigger"}, order)
}

func TestRenewWithoutRefreshTokenExpiresSession(t *testing.T) {
	s := loggedIn()
	s.RefreshToken = ""
	f := setup(t, s, &fakeRefresher{})

	_, err := f.coord.Renew(context.Background(), "t1")
	require.ErrorIs(t, err, autherrors.ErrSessionExpired)
	require.ErrorIs(t, err, autherrors.ErrNoRefreshToken)

	require.True(t, f.session(t).IsEmpty())
	require.EqualValues(t, 1, f.expired.Load())
	require.Zero(t, f.refresher.calls.Load())
	require.False(t, f.coord.InFlight(), "flag must be released")
}

func TestRefreshFailureRejectsQueueAndClears(t *testing.T) {
	boom := errors.New("refresh rejected")
	r := &fakeRefresher{err: boom, gate: make(chan struct{}), started: make(chan struct{})}
	f := setup(t, loggedIn(), r)

	errs := make(chan error, 3)
	go func() {
		_, err := f.coord.Renew(context.Background(), "t1")
		errs <- err
	}()
	<-r.started
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.coord.Renew(context.Background(), "t1")
			errs <- err
		}()
	}
	waitFor(t, func() bool { return f.coord.Pending() == 2 })
	close(r.gate)

	for i := 0; i < 3; i++ {
		err := <-errs
		require.ErrorIs(t, err, autherrors.ErrSessionExpired)
		require.ErrorIs(t, err, autherrors.ErrRefreshFailed)
		require.ErrorIs(t, err, boom)
	}
	require.True(t, f.session(t).IsEmpty())
	require.EqualValues(t, 1, f.expired.Load())
	require.EqualValues(t, 1, r.calls.Load())
}

func TestEmptyRefreshResponseIsFailure(t *testing.T) {
	f := setup(t, loggedIn(), &fakeRefresher{resp: &authmodel.AuthResponse{}})

	_, err := f.coord.Renew(context.Background(), "t1")
	require.ErrorIs(t, err, autherrors.ErrRefreshFailed)
	require.True(t, f.session(t).IsEmpty())
}

func TestRefreshTimeout(t *testing.T) {
	r := &fakeRefresher{gate: make(chan struct{})}
	defer close(r.gate)
	f := setup(t, loggedIn(), r, refresh.WithTimeout(20*time.Millisecond))

	_, err := f.coord.Renew(context.Background(), "t1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, autherrors.ErrSessionExpired)
}

func TestCancelledWaiterDoesNotBlockQueue(t *testing.T) {
	r := &fakeRefresher{resp: grant("t2", "r2"), gate: make(chan struct{}), started: make(chan struct{})}
	f := setup(t, loggedIn(), r)

	trigger := make(chan error, 1)
	go func() {
		_, err := f.coord.Renew(context.Background(), "t1")
		trigger <- err
	}()
	<-r.started

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := f.coord.Renew(ctx, "t1")
		cancelled <- err
	}()
	waitFor(t, func() bool { return f.coord.Pending() == 1 })

	survivor := make(chan string, 1)
	go func() {
		g, err := f.coord.Renew(context.Background(), "t1")
		require.NoError(t, err)
		g.Dispatched()
		survivor <- g.AccessToken
	}()
	waitFor(t, func() bool { return f.coord.Pending() == 2 })

	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	close(r.gate)
	require.NoError(t, <-trigger)
	require.Equal(t, "t2", <-survivor)
}

func TestTriggeringCallerCancellationDoesNotAbortRefresh(t *testing.T) {
	r := &fakeRefresher{resp: grant("t2", "r2"), gate: make(chan struct{}), started: make(chan struct{})}
	f := setup(t, loggedIn(), r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.coord.Renew(ctx, "t1")
		done <- err
	}()
	<-r.started
	cancel()
	close(r.gate)

	require.NoError(t, <-done)
	require.Equal(t, "r2", f.session(t).RefreshToken)
}

// slowStore snapshots the session on its first Load and then blocks until
// gate is closed, so the snapshot can go stale while the caller waits.
type slowStore struct {
	*sessions.InMemoryStore
	loading chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newSlowStore(initial sessions.Session) *slowStore {
	s := &slowStore{
		InMemoryStore: sessions.NewInMemoryStore(),
		loading:       make(chan struct{}),
		gate:          make(chan struct{}),
	}
	_ = s.InMemoryStore.Save(context.Background(), initial)
	return s
}

func (s *slowStore) Load(ctx context.Context) (sessions.Session, error) {
	sess, err := s.InMemoryStore.Load(ctx)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.loading)
		<-s.gate
	}
	return sess, err
}

func TestStateReadableWhileSessionLoads(t *testing.T) {
	store := newSlowStore(loggedIn())
	coord := refresh.NewCoordinator(store, &fakeRefresher{resp: grant("t2", "r2")})

	done := make(chan error, 1)
	go func() {
		_, err := coord.Renew(context.Background(), "t1")
		done <- err
	}()
	<-store.loading

	answered := make(chan struct{})
	go func() {
		coord.InFlight()
		coord.Pending()
		close(answered)
	}()
	select {
	case <-answered:
	case <-time.After(time.Second):
		t.Fatal("coordinator state blocked behind a session load")
	}

	close(store.gate)
	require.NoError(t, <-done)
}

func TestStaleLoadDoesNotStartSecondRefresh(t *testing.T) {
	store := newSlowStore(loggedIn())
	r := &fakeRefresher{resp: grant("t2", "r2")}
	coord := refresh.NewCoordinator(store, r)

	slow := make(chan *refresh.Grant, 1)
	go func() {
		g, err := coord.Renew(context.Background(), "t1")
		require.NoError(t, err)
		slow <- g
	}()
	<-store.loading // holds a snapshot with t1/r1

	g, err := coord.Renew(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t2", g.AccessToken)

	close(store.gate)
	late := <-slow
	require.Equal(t, "t2", late.AccessToken)
	require.EqualValues(t, 1, r.calls.Load(), "rejected refresh token must not be reused")
}
