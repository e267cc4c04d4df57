package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// SessionExpiredFunc is called after a failed refresh has cleared the session.
// Callers should treat it as "the user has been logged out".
type SessionExpiredFunc func(ctx context.Context, cause error)

// Client talks to the user management API. Authenticated calls carry the
// stored access token; a 401 triggers at most one refresh, after which the
// rejected call is replayed once with the new token.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	store   sessions.Store
	coord   *refresh.Coordinator
	log     zerolog.Logger
	metrics *metrics.Client

	mu        sync.RWMutex
	onExpired []SessionExpiredFunc
}

// New creates a client for the API rooted at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, store sessions.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[apiclient.New] invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[apiclient.New] base url %q must be absolute: %w", baseURL, autherrors.ErrInvalidRequest)
	}
	if store == nil {
		store = sessions.NewInMemoryStore()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		baseURL:   u,
		http:      newHTTPClient(o),
		store:     store,
		log:       o.log,
		metrics:   o.metrics,
		onExpired: o.onExpired,
	}
	c.coord = refresh.NewCoordinator(store, c,
		refresh.WithTimeout(o.refreshTimeout),
		refresh.WithExpiredHandler(c.sessionExpired),
		refresh.WithLogger(o.log),
		refresh.WithMetrics(o.metrics),
	)
	return c, nil
}

// OnSessionExpired registers fn to be told when the session is lost.
func (c *Client) OnSessionExpired(fn SessionExpiredFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

func (c *Client) sessionExpired(ctx context.Context, cause error) {
	c.mu.RLock()
	handlers := append([]SessionExpiredFunc(nil), c.onExpired...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(ctx, cause)
	}
}

// RefreshState reports whether a refresh is running and how many calls wait on it.
func (c *Client) RefreshState() (inFlight bool, queued int) {
	return c.coord.InFlight(), c.coord.Pending()
}

// Session returns what is currently stored.
func (c *Client) Session(ctx context.Context) (sessions.Session, error) {
	return c.store.Load(ctx)
}

// BaseURL is the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// TokenSource exposes the stored credentials to oauth2-aware libraries.
// It never refreshes; a 401 through this client is what drives rotation.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: c.store}
}

type storeTokenSource struct {
	ctx   context.Context
	store sessions.Store
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.store.Load(s.ctx)
	if err != nil {
		return nil, err
	}
	t := token.ToOAuth2(sess)
	if t == nil {
		return nil, autherrors.ErrUnauthorized
	}
	return t, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do sends an authenticated request. body is encoded as JSON when non-nil and
// a successful JSON reply is decoded into out when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	payload, err := encode(body)
	if err != nil {
		return fmt.Errorf("[apiclient.Do] encode %s %s: %w", method, path, err)
	}
	data, err := c.call(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.call] load session: %w", err)
	}

	data, status, err := c.send(ctx, method, path, query, payload, sess.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if isSuccess(status) {
		return data, nil
	}
	if status != http.StatusUnauthorized {
		return nil, newAPIError(method, path, status, data)
	}

	grant, err := c.coord.Renew(ctx, sess.AccessToken)
	if err != nil {
		return nil, err
	}
	// A replay is sent once; a second 401 goes back to the caller.
	data, status, err = c.send(ctx, method, path, query, payload, grant.AccessToken, grant.Dispatched)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, newAPIError(method, path, status, data)
	}
	return data, nil
}

// send performs one HTTP exchange. dispatched, when set, is called once the
// request has been written to the connection, or once the exchange ends
// without that happening.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, accessToken string, dispatched func()) ([]byte, int, error) {
	if dispatched != nil {
		defer dispatched()
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { dispatched() },
		})
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), body)
	if err != nil {
		return nil, 0, fmt.Errorf("[apiclient.send] build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: authmodel.TokenTypeBearer}).SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		return nil, 0, fmt.Errorf("%w: %s %s: %w", autherrors.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read %s %s: %w", autherrors.ErrNetwork, method, path, err)
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("api call")
	return data, resp.StatusCode, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func encode(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

func decode(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("[apiclient.decode] unexpected response body: %w", err)
	}
	return nil
}
