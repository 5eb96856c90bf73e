package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/pkg/model"
	pkgsecrets "github.com/Checker-Finance/chat-client/pkg/secrets"
)

// ErrIncompleteSecret is returned when a secret lacks username or password.
var ErrIncompleteSecret = errors.New("secret does not contain username and password")

// CredentialResolver resolves login credentials from a secrets provider,
// caching results locally to reduce API calls.
//
// Secret naming convention: {env}/chat-client/{profile}
type CredentialResolver struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[model.Credentials]
}

// NewCredentialResolver constructs a resolver over provider.
func NewCredentialResolver(
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[model.Credentials],
) *CredentialResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialResolver{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    cache,
	}
}

// SecretName builds the secret key for a profile.
// Pattern: {env}/chat-client/{profile}
func (r *CredentialResolver) SecretName(profile string) string {
	return strings.ToLower(fmt.Sprintf("%s/chat-client/%s", r.env, profile))
}

// Resolve returns the credentials stored for profile.
func (r *CredentialResolver) Resolve(ctx context.Context, profile string) (model.Credentials, error) {
	name := r.SecretName(profile)

	if creds, ok := r.cache.Get(name); ok {
		return creds, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		return model.Credentials{}, fmt.Errorf("resolve credentials for %q: %w", profile, err)
	}

	creds := model.Credentials{
		Username: secretMap["username"],
		Password: secretMap["password"],
	}
	if !creds.Complete() {
		return model.Credentials{}, fmt.Errorf("parse secret %q: %w", name, ErrIncompleteSecret)
	}

	r.cache.Put(name, creds)

	r.logger.Info("secrets.credentials_resolved",
		zap.String("profile", profile),
		zap.String("username", creds.Username),
	)
	return creds, nil
}

// Forget drops a cached profile, e.g. after the backend rejected it.
func (r *CredentialResolver) Forget(profile string) {
	r.cache.Bust(r.SecretName(profile))
}
