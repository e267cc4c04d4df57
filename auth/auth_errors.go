package auth

import "errors"

var (
	NotAuthenticatedErr  = errors.New("not authenticated")
	IncompleteSessionErr = errors.New("server returned a session without a user")
)
