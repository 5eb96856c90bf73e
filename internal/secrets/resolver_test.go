package secrets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/pkg/model"
	pkgsecrets "github.com/Checker-Finance/chat-client/pkg/secrets"
)

type mockProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (m *mockProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.secrets[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("secret not found: %s", key)
}

func newResolver(p pkgsecrets.Provider) *CredentialResolver {
	return NewCredentialResolver(zap.NewNop(), "dev", p, pkgsecrets.NewCache[model.Credentials](5*time.Minute))
}

func TestResolve_FetchesThenCaches(t *testing.T) {
	mock := &mockProvider{secrets: map[string]map[string]string{
		"dev/chat-client/alice": {"username": "alice", "password": "pw1"},
	}}
	r := newResolver(mock)

	creds, err := r.Resolve(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, model.Credentials{Username: "alice", Password: "pw1"}, creds)

	_, err = r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.calls, "second resolve must hit the cache")

	r.Forget("alice")
	_, err = r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.calls)
}

func TestResolve_IncompleteSecret(t *testing.T) {
	mock := &mockProvider{secrets: map[string]map[string]string{
		"dev/chat-client/bob": {"username": "bob"},
	}}
	_, err := newResolver(mock).Resolve(context.Background(), "bob")
	require.ErrorIs(t, err, ErrIncompleteSecret)
}

func TestResolve_ProviderError(t *testing.T) {
	mock := &mockProvider{err: fmt.Errorf("access denied")}
	_, err := newResolver(mock).Resolve(context.Background(), "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
