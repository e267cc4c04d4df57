package apiclient

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/internal/ids"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// headerRoundTripper stamps every request with a User-Agent and a request id.
type headerRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone request to avoid mutating the original
	clone := req.Clone(req.Context())
	if rt.userAgent != "" {
		clone.Header.Set("User-Agent", rt.userAgent)
	}
	if clone.Header.Get(requestIDHeader) == "" {
		clone.Header.Set(requestIDHeader, ids.New())
	}
	return rt.wrapped.RoundTrip(clone)
}

// rateLimitedRoundTripper holds requests back to stay under the server's rate limit.
type rateLimitedRoundTripper struct {
	wrapped http.RoundTripper
	limiter *rate.Limiter
}

func (rt *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return rt.wrapped.RoundTrip(req)
}

// newHTTPClient wraps the transport of a copy of base; base itself is left untouched.
func newHTTPClient(o *options) *http.Client {
	hc := &http.Client{}
	if o.httpClient != nil {
		*hc = *o.httpClient
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.limiter != nil {
		transport = &rateLimitedRoundTripper{wrapped: transport, limiter: o.limiter}
	}
	hc.Transport = &headerRoundTripper{wrapped: transport, userAgent: o.userAgent}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}
	return hc
}
