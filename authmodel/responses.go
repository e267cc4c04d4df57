package authmodel

import (
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
)

// TokenTypeBearer is the only token type the server issues.
const TokenTypeBearer = "Bearer"

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	// Token is the short lived access token sent as "Authorization: Bearer <token>".
	Token string `json:"token"`

	// RefreshToken is single use: the server invalidates it once exchanged.
	RefreshToken string `json:"refreshToken"`

	Type string         `json:"type"`
	User *users.Profile `json:"user"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Timestamp string  `json:"timestamp"`
	Status    int     `json:"status"`
	Error     string  `json:"error"`
	ErrorCode *string `json:"errorCode,omitempty"`
	Message   string  `json:"message"`
	Path      string  `json:"path"`
}

// Code returns the machine readable error code, or "" when the server sent none.
func (e ErrorResponse) Code() string {
	return utils.Value(e.ErrorCode)
}
