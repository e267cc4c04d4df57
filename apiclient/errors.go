package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       *authmodel.ErrorResponse // nil when the reply was not the JSON error shape
	Raw        []byte
}

func newAPIError(method, path string, status int, raw []byte) *APIError {
	e := &APIError{Method: method, Path: path, StatusCode: status, Raw: raw}
	var body authmodel.ErrorResponse
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil && (body.Status != 0 || body.Message != "" || body.Error != "") {
		e.Body = &body
	}
	return e
}

func (e *APIError) Error() string {
	msg := ""
	if e.Body != nil {
		msg = utils.FirstNonEmpty(e.Body.Message, e.Body.Error)
	}
	msg = utils.FirstNonEmpty(msg, http.StatusText(e.StatusCode), "unexpected status")
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 replies.
func (e *APIError) Is(target error) bool {
	return target == autherrors.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Code returns the server's machine readable error code, if any.
func (e *APIError) Code() string {
	if e.Body == nil {
		return ""
	}
	return e.Body.Code()
}

// StatusCode extracts the HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if autherrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
