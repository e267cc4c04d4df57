package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/authmodel"
)

type accessClaims struct {
	Type  string   `json:"type"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// issue mints a token pair for acc. Callers hold s.mu.
func (s *Server) issue(acc *account) (*authmodel.AuthResponse, error) {
	now := time.Now()
	claims := accessClaims{
		Type:  "access",
		Roles: acc.profile.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.profile.Username,
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	refreshToken := uuid.NewString()

	s.access[signed] = acc.profile.Username
	s.refresh[refreshToken] = acc.profile.Username

	profile := acc.profile
	profile.Roles = append([]string(nil), acc.profile.Roles...)
	return &authmodel.AuthResponse{
		Token:        signed,
		RefreshToken: refreshToken,
		Type:         authmodel.TokenTypeBearer,
		User:         &profile,
	}, nil
}

// authenticate returns the account behind a live, correctly signed access token.
func (s *Server) authenticate(raw string) (*account, error) {
	if raw == "" {
		return nil, fail(http.StatusUnauthorized, CodeTokenExpired, "Full authentication is required to access this resource")
	}
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
	)
	if err != nil || claims.Type != "access" {
		return nil, fail(http.StatusUnauthorized, CodeTokenExpired, "Invalid or expired access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.access[raw]
	if !ok || username != claims.Subject {
		return nil, fail(http.StatusUnauthorized, CodeTokenExpired, "Invalid or expired access token")
	}
	acc, ok := s.accounts[username]
	if !ok {
		return nil, fail(http.StatusUnauthorized, CodeTokenExpired, "User no longer exists")
	}
	return acc, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
