package fakeapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/labstack/echo/v4"
)

// Error codes carried in ErrorResponse.errorCode.
const (
	CodeBadCredentials      = "BAD_CREDENTIALS"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeUserExists          = "USER_ALREADY_EXISTS"
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeAccessDenied        = "ACCESS_DENIED"
)

type codedError struct {
	status  int
	code    string
	message string
}

func (e *codedError) Error() string {
	return e.message
}

func fail(status int, code, message string) error {
	return &codedError{status: status, code: code, message: message}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	body := authmodel.ErrorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request().URL.Path,
	}

	var coded *codedError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &coded):
		body.Status = coded.status
		body.Message = coded.message
		body.ErrorCode = utils.Ptr(coded.code)
	case errors.As(err, &he):
		body.Status = he.Code
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		}
	default:
		body.Status = http.StatusInternalServerError
		body.Message = err.Error()
	}
	body.Error = http.StatusText(body.Status)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(body.Status)
		return
	}
	_ = c.JSON(body.Status, body)
}
