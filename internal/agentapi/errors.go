package agentapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoCredential is returned when a client is built without an API key.
var ErrNoCredential = errors.New("agentapi: no credential")

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("agentapi: %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// ToServiceError maps the response onto the service error taxonomy.
func (e *APIError) ToServiceError() *goerrors.Error {
	category := goerrors.CategoryExternal
	textCode := "REMOTE_ERROR"
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		category, textCode = goerrors.CategoryAuth, "UNAUTHORIZED"
	case e.StatusCode == http.StatusForbidden:
		category, textCode = goerrors.CategoryAuthz, "FORBIDDEN"
	case e.StatusCode == http.StatusNotFound:
		category, textCode = goerrors.CategoryNotFound, "NOT_FOUND"
	case e.StatusCode == http.StatusTooManyRequests:
		category, textCode = goerrors.CategoryRateLimit, "RATE_LIMITED"
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity:
		category, textCode = goerrors.CategoryBadInput, "BAD_INPUT"
	}
	return goerrors.New(e.Error(), category).
		WithCode(e.StatusCode).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"method": e.Method,
			"path":   e.Path,
		})
}

// IsTransient reports whether err is worth retrying: network failures,
// throttling and server-side errors. Context errors never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var transportErr *transportError
	return errors.As(err, &transportErr)
}

// transportError marks failures that happened before a response status was
// read: connection resets, truncated bodies.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "agentapi: transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
