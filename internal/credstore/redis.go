package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/pkg/model"
)

// RedisStore keeps credentials and token under <prefix>:<key> without expiry,
// and session data under <prefix>:session:<key> with a TTL.
type RedisStore struct {
	redis      *redis.Client
	prefix     string
	sessionTTL time.Duration
	logger     *zap.Logger
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr       string
	DB         int
	Password   string
	Prefix     string
	SessionTTL time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreFromClient(rdb, opts.Prefix, opts.SessionTTL, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string, sessionTTL time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "chat-client"
	}
	return &RedisStore{redis: rdb, prefix: prefix, sessionTTL: sessionTTL, logger: logger}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) sessionKey(name string) string {
	return s.prefix + ":session:" + name
}

func (s *RedisStore) Get(ctx context.Context) (model.Credentials, bool, error) {
	vals, err := s.redis.MGet(ctx, s.key(KeyUsername), s.key(KeyPassword)).Result()
	if err != nil {
		return model.Credentials{}, false, fmt.Errorf("redis mget credentials: %w", err)
	}
	values := make(map[string]string, 2)
	for i, name := range []string{KeyUsername, KeyPassword} {
		if v, ok := vals[i].(string); ok {
			values[name] = v
		}
	}
	creds, ok := credentialsFrom(values)
	return creds, ok, nil
}

func (s *RedisStore) Set(ctx context.Context, creds model.Credentials) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(KeyUsername), creds.Username, 0)
		p.Set(ctx, s.key(KeyPassword), creds.Password, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set credentials: %w", err)
	}
	return nil
}

func (s *RedisStore) Token(ctx context.Context) (string, bool, error) {
	tok, err := s.redis.Get(ctx, s.key(KeyAccessToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get token: %w", err)
	}
	return tok, tok != "", nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	if err := s.redis.Set(ctx, s.key(KeyAccessToken), token, 0).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionGet(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get session %q: %w", key, err)
	}
	return true, decodeSession(key, data, dest)
}

func (s *RedisStore) SessionSet(ctx context.Context, key string, value any) error {
	data, err := encodeSession(key, value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.sessionKey(key), data, s.sessionTTL).Err()
}

func (s *RedisStore) SessionDelete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, s.sessionKey(key)).Err()
}

// Clear deletes the durable keys and every session key under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys := []string{s.key(KeyUsername), s.key(KeyPassword), s.key(KeyAccessToken)}

	iter := s.redis.Scan(ctx, 0, s.sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan session keys: %w", err)
	}

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	s.logger.Debug("credstore.redis_cleared", zap.String("prefix", s.prefix), zap.Int("keys", len(keys)))
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}
