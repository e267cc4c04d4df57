// Package token reads access tokens on the client side. Signatures are not
// checked here: the server is the only party that can verify them, the client
// only needs the claims for display and for expiry hints.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/sessions"
	"golang.org/x/oauth2"
)

const TypeAccess = "access"

// Claims is the readable part of an access token.
type Claims struct {
	Subject   string // username
	ID        string // jti, used by the server for revocation
	Type      string // "access" for access tokens
	Issuer    string
	Audience  []string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Inspect decodes the claims of a JWT without verifying its signature.
func Inspect(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, autherrors.ErrInvalidToken
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, autherrors.Join(autherrors.ErrInvalidToken, err)
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, autherrors.ErrInvalidToken
	}

	c := &Claims{Roles: utils.ToStringSlice(mc["roles"])}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if aud, err := mc.GetAudience(); err == nil {
		c.Audience = aud
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.ID, _ = mc["jti"].(string)
	c.Type, _ = mc["type"].(string)
	return c, nil
}

// Expired reports whether the token is past its exp claim at now.
// Tokens without exp never expire client side.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresWithin(now, 0)
}

// ExpiresWithin reports whether the token expires within d of now.
func (c *Claims) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(c.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt.IsZero() {
		return 0
	}
	if left := c.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// ToOAuth2 exposes a session in the shape used by golang.org/x/oauth2 so the
// credentials can be handed to libraries that accept an oauth2.TokenSource.
func ToOAuth2(s sessions.Session) *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	t := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
	}
	if claims, err := Inspect(s.AccessToken); err == nil {
		t.Expiry = claims.ExpiresAt
	}
	return t
}
