package client

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionEnded matches every error returned after a refresh failed.
	// The caller must log in again.
	ErrSessionEnded  = errors.New("session ended")
	ErrTokenRequest  = errors.New("failed to fetch token")
	ErrTokenResponse = errors.New("invalid token response")
)

// APIError is a non-2xx response from the auth server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("auth server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("auth server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Expired reports whether the server rejected an expired access token.
func (e *APIError) Expired() bool { return e.Code == "TOKEN_EXPIRED" }
