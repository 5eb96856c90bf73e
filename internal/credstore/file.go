package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/pkg/model"
	"github.com/Checker-Finance/chat-client/pkg/secrets"
)

// FileStore persists credentials and token in a JSON file readable only by the
// owner. The file is re-read on every call so separate processes see each
// other's refreshes. Session data lives only as long as the process.
type FileStore struct {
	logger  *zap.Logger
	path    string
	mu      sync.Mutex
	session *secrets.Cache[[]byte]
}

// NewFileStore creates a store backed by path. The file need not exist yet.
func NewFileStore(logger *zap.Logger, path string, sessionTTL time.Duration) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		logger:  logger,
		path:    path,
		session: secrets.NewCache[[]byte](sessionTTL),
	}
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context) (model.Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return model.Credentials{}, false, err
	}
	creds, ok := credentialsFrom(values)
	return creds, ok, nil
}

func (s *FileStore) Set(_ context.Context, creds model.Credentials) error {
	return s.update(func(values map[string]string) {
		values[KeyUsername] = creds.Username
		values[KeyPassword] = creds.Password
	})
}

func (s *FileStore) Token(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	tok := values[KeyAccessToken]
	return tok, tok != "", nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	return s.update(func(values map[string]string) {
		values[KeyAccessToken] = token
	})
}

func (s *FileStore) SessionGet(_ context.Context, key string, dest any) (bool, error) {
	data, ok := s.session.Get(key)
	if !ok {
		return false, nil
	}
	return true, decodeSession(key, data, dest)
}

func (s *FileStore) SessionSet(_ context.Context, key string, value any) error {
	data, err := encodeSession(key, value)
	if err != nil {
		return err
	}
	s.session.Put(key, data)
	return nil
}

func (s *FileStore) SessionDelete(_ context.Context, key string) error {
	s.session.Bust(key)
	return nil
}

// Clear removes the credentials file and drops session data.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Clear()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	s.logger.Debug("credstore.file_cleared", zap.String("path", s.path))
	return nil
}

func (s *FileStore) update(mutate func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	mutate(values)
	return s.write(values)
}

// read must be called with s.mu held. A missing file is an empty store.
func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", s.path, err)
	}
	return values, nil
}

// write must be called with s.mu held. It replaces the file atomically.
func (s *FileStore) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
