// Package credstore persists the client's login credentials, its current
// access token, and session-scoped data derived from API responses.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Checker-Finance/chat-client/pkg/model"
)

// Durable keys.
const (
	KeyUsername    = "username"
	KeyPassword    = "password"
	KeyAccessToken = "access_token"
)

// SessionKeyProjects holds the cached sidebar list.
const SessionKeyProjects = "projects"

// Store is the contract every backend satisfies. No validation of contents is
// performed. Clear removes credentials, token and all session data, and is
// safe to call on an already empty store.
type Store interface {
	// Get returns the stored credentials; ok is false unless both fields are present.
	Get(ctx context.Context) (creds model.Credentials, ok bool, err error)
	Set(ctx context.Context, creds model.Credentials) error

	Token(ctx context.Context) (token string, ok bool, err error)
	SetToken(ctx context.Context, token string) error

	// SessionGet decodes the session value under key into dest; ok is false on a miss.
	SessionGet(ctx context.Context, key string, dest any) (ok bool, err error)
	SessionSet(ctx context.Context, key string, value any) error
	SessionDelete(ctx context.Context, key string) error

	Clear(ctx context.Context) error
}

func encodeSession(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode session %q: %w", key, err)
	}
	return data, nil
}

func decodeSession(key string, data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode session %q: %w", key, err)
	}
	return nil
}

func credentialsFrom(values map[string]string) (model.Credentials, bool) {
	creds := model.Credentials{
		Username: values[KeyUsername],
		Password: values[KeyPassword],
	}
	if !creds.Complete() {
		return model.Credentials{}, false
	}
	return creds, true
}
