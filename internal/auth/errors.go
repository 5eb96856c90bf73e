package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired signals that the user must log in again. Callers decide
	// how to surface it (prompt, redirect, exit code).
	ErrAuthRequired = errors.New("authentication required")

	// ErrNoCredentials is returned when a refresh finds nothing in the store.
	ErrNoCredentials = fmt.Errorf("no credentials stored: %w", ErrAuthRequired)

	// ErrSessionChanged is returned to callers of an exchange that finished
	// after Login or Logout replaced the credentials it used. Its token is dropped.
	ErrSessionChanged = fmt.Errorf("credentials changed during refresh: %w", ErrAuthRequired)

	// ErrEmptyToken is returned when the token endpoint answers 2xx without a token.
	ErrEmptyToken = errors.New("token response has no access_token")
)
