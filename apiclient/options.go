package apiclient

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "go-auth-client/1.0"

type options struct {
	httpClient     *http.Client
	userAgent      string
	limiter        *rate.Limiter
	timeout        time.Duration
	refreshTimeout time.Duration
	onExpired      []SessionExpiredFunc
	log            zerolog.Logger
	metrics        *metrics.Client
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		userAgent: DefaultUserAgent,
		log:       log.Logger,
	}
}

// WithHTTPClient sets the client whose transport is wrapped. It is copied, not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithRateLimit caps outgoing requests. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds every single HTTP exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRefreshTimeout bounds the refresh call shared by all waiting requests.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) { o.refreshTimeout = d }
}

func WithSessionExpiredHandler(fn SessionExpiredFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onExpired = append(o.onExpired, fn)
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Client) Option {
	return func(o *options) { o.metrics = m }
}

// OptionsFromConfig maps the client settings onto options.
func OptionsFromConfig(cfg config.ClientConfig) []Option {
	return []Option{
		WithTimeout(cfg.GetRequestTimeout()),
		WithRefreshTimeout(cfg.GetRefreshTimeout()),
		WithUserAgent(cfg.GetUserAgent()),
		WithRateLimit(cfg.GetRequestsPerSecond(), cfg.GetRateLimitBurst()),
	}
}
