package model

import (
	"time"

	"github.com/google/uuid"
)

// Credentials is the long-lived username/password pair exchanged for access tokens.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether both fields are present.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// RegisterRequest is the body sent to POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the public view of an account.
type User struct {
	ID       int    `json:"id,omitempty"`
	Name     string `json:"name"`
	Disabled bool   `json:"disabled,omitempty"`
}

// AuthEventType enumerates auth lifecycle events.
type AuthEventType string

const (
	AuthEventLogin         AuthEventType = "login"
	AuthEventRefresh       AuthEventType = "refresh"
	AuthEventRefreshFailed AuthEventType = "refresh_failed"
	AuthEventLogout        AuthEventType = "logout"
)

// AuthEvent describes a change in the client's authentication state.
// Secrets never appear in it.
type AuthEvent struct {
	ID        uuid.UUID     `json:"id"`
	Type      AuthEventType `json:"type"`
	Username  string        `json:"username,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewAuthEvent stamps a new event with an ID and the current UTC time.
func NewAuthEvent(t AuthEventType, username string, err error) AuthEvent {
	ev := AuthEvent{
		ID:        uuid.New(),
		Type:      t,
		Username:  username,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
