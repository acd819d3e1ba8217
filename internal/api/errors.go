package api

import (
	"errors"
	"fmt"
)

// ServerRejection is a non-2xx response from the backend. Message is the
// server's human-readable explanation and is meant to be shown verbatim.
type ServerRejection struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *ServerRejection) Error() string {
	return e.Message
}

// IsServerRejection reports whether err (or any error in its chain) is a
// ServerRejection.
func IsServerRejection(err error) bool {
	var rej *ServerRejection
	return errors.As(err, &rej)
}

// Message returns the text to show the user for err: the server's own
// message when a ServerRejection is in the chain, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rej *ServerRejection
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return err.Error()
}

// IsStatus reports whether err is a ServerRejection with the given status code.
func IsStatus(err error, code int) bool {
	var rej *ServerRejection
	if errors.As(err, &rej) {
		return rej.StatusCode == code
	}
	return false
}

// AuthError indicates that the bearer token was refused. The token provider
// must re-authenticate before further calls can succeed.
type AuthError struct {
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed on %s: %s", e.Path, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
