package credstore

import (
	"context"
	"sync"
	"time"

	"github.com/Checker-Finance/chat-client/pkg/model"
	"github.com/Checker-Finance/chat-client/pkg/secrets"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	session *secrets.Cache[[]byte]
}

// NewMemoryStore creates an empty store; sessionTTL <= 0 keeps session data until Clear.
func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]string),
		session: secrets.NewCache[[]byte](sessionTTL),
	}
}

func (s *MemoryStore) Get(_ context.Context) (model.Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := credentialsFrom(s.values)
	return creds, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, creds model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyUsername] = creds.Username
	s.values[KeyPassword] = creds.Password
	return nil
}

func (s *MemoryStore) Token(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok := s.values[KeyAccessToken]
	return tok, tok != "", nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyAccessToken] = token
	return nil
}

func (s *MemoryStore) SessionGet(_ context.Context, key string, dest any) (bool, error) {
	data, ok := s.session.Get(key)
	if !ok {
		return false, nil
	}
	return true, decodeSession(key, data, dest)
}

func (s *MemoryStore) SessionSet(_ context.Context, key string, value any) error {
	data, err := encodeSession(key, value)
	if err != nil {
		return err
	}
	s.session.Put(key, data)
	return nil
}

func (s *MemoryStore) SessionDelete(_ context.Context, key string) error {
	s.session.Bust(key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
	s.session.Clear()
	return nil
}
