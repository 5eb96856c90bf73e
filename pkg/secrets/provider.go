package secrets

import "context"

// Provider defines a generic secrets manager interface.
// The chat client uses it to source login credentials for headless runs.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its key-value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
