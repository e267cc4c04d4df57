package errors

import (
	"errors"
	"fmt"
)

// Common error kinds for the auth client
var (
	// Transport errors
	ErrNetwork = errors.New("network failure")

	// Credential errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token stored")
	ErrInvalidToken   = errors.New("invalid token")

	// Session store errors
	ErrCorruptSession    = errors.New("stored session is corrupt")
	ErrIncompleteSession = errors.New("session is missing a token or user")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnsupported    = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors so that each remains matchable with Is
func Join(errs ...error) error {
	return errors.Join(errs...)
}
