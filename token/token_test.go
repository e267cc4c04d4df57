package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return raw
}

func TestInspect(t *testing.T) {
	raw := sign(t, jwtlib.MapClaims{
		"sub":   "jdoe",
		"jti":   "abc-123",
		"type":  "access",
		"iss":   "user-management-system",
		"aud":   "api",
		"roles": []string{"ROLE_USER"},
		"iat":   now.Unix(),
		"exp":   now.Add(15 * time.Minute).Unix(),
	})

	c, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "jdoe", c.Subject)
	require.Equal(t, "abc-123", c.ID)
	require.Equal(t, token.TypeAccess, c.Type)
	require.Equal(t, "user-management-system", c.Issuer)
	require.Equal(t, []string{"api"}, c.Audience)
	require.Equal(t, []string{"ROLE_USER"}, c.Roles)
	require.True(t, c.IssuedAt.Equal(now))
	require.True(t, c.ExpiresAt.Equal(now.Add(15*time.Minute)))
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := token.Inspect("")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = token.Inspect("not.a.jwt")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestExpiry(t *testing.T) {
	c := &token.Claims{ExpiresAt: now.Add(time.Minute)}

	require.False(t, c.Expired(now))
	require.True(t, c.Expired(now.Add(time.Minute)))
	require.True(t, c.ExpiresWithin(now, 2*time.Minute))
	require.False(t, c.ExpiresWithin(now, 30*time.Second))
	require.Equal(t, time.Minute, c.Remaining(now))
	require.Zero(t, c.Remaining(now.Add(time.Hour)))

	require.False(t, (&token.Claims{}).Expired(now))
}

func TestToOAuth2(t *testing.T) {
	require.Nil(t, token.ToOAuth2(sessions.Session{}))

	exp := now.Add(time.Hour)
	raw := sign(t, jwtlib.MapClaims{"sub": "jdoe", "exp": exp.Unix()})

	tok := token.ToOAuth2(sessions.Session{AccessToken: raw, RefreshToken: "r1"})
	require.Equal(t, raw, tok.AccessToken)
	require.Equal(t, "r1", tok.RefreshToken)
	require.Equal(t, "Bearer", tok.Type())
	require.True(t, tok.Expiry.Equal(exp))

	opaque := token.ToOAuth2(sessions.Session{AccessToken: "opaque"})
	require.True(t, opaque.Expiry.IsZero())
}
