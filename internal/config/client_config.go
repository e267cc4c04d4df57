package config

import "time"

type ClientConfig interface {
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetUserAgent() string
	GetRequestsPerSecond() float64
	GetRateLimitBurst() int
}

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
}

// GetRefreshTimeout bounds a single /auth/refresh call. Callers queued behind
// the refresh are released when it settles, so this also caps their wait.
func (Client) GetRefreshTimeout() time.Duration {
	return GetEnvDuration("REFRESH_TIMEOUT", 15*time.Second)
}

func (Client) GetUserAgent() string {
	return GetEnv("USER_AGENT", "go-auth-client/1.0")
}

// GetRequestsPerSecond returns 0 when client side rate limiting is disabled.
func (Client) GetRequestsPerSecond() float64 {
	return GetEnvFloat("REQUESTS_PER_SECOND", 0)
}

func (Client) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 10)
}
