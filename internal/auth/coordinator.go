// Package auth owns the access-token lifecycle: login, logout and a
// single-flight refresh shared by every concurrent caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/internal/events"
	"github.com/Checker-Finance/chat-client/internal/httpclient"
	"github.com/Checker-Finance/chat-client/internal/metrics"
	"github.com/Checker-Finance/chat-client/pkg/model"
	"github.com/Checker-Finance/chat-client/pkg/utils"
)

const refreshKey = "access_token"

// CredentialSource resolves credentials held outside the store (e.g. a secrets
// manager). Forget drops anything it cached for profile.
type CredentialSource interface {
	Resolve(ctx context.Context, profile string) (model.Credentials, error)
	Forget(profile string)
}

// Options configures a Coordinator.
type Options struct {
	BaseURL        string
	RefreshTimeout time.Duration // bound on one token exchange; 0 means 10s
	Events         events.Publisher
	Logger         *zap.Logger
}

// Coordinator produces access tokens, coalescing concurrent refreshes into a
// single exchange. Construct one per process and share it.
type Coordinator struct {
	logger         *zap.Logger
	store          credstore.Store
	exec           *httpclient.Executor
	events         events.Publisher
	baseURL        string
	refreshTimeout time.Duration

	group singleflight.Group

	mu      sync.Mutex
	credGen uint64 // bumped by Login and Logout; guards token writes
}

// refreshResult is what one exchange broadcasts to everyone who joined it.
type refreshResult struct {
	token string
	gen   uint64
}

// NewCoordinator wires a coordinator over store, using exec for the token exchange.
func NewCoordinator(store credstore.Store, exec *httpclient.Executor, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = events.Noop{}
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}
	return &Coordinator{
		logger:         opts.Logger,
		store:          store,
		exec:           exec,
		events:         opts.Events,
		baseURL:        opts.BaseURL,
		refreshTimeout: opts.RefreshTimeout,
	}
}

// RefreshToken exchanges the stored credentials for a new access token. If an
// exchange is already running the caller joins it and receives the same token
// or the same error. A caller whose ctx ends stops waiting; the exchange
// itself keeps running for the others, bounded by the refresh timeout.
func (c *Coordinator) RefreshToken(ctx context.Context) (string, error) {
	res, err := c.refreshShared(ctx)
	if err != nil {
		return "", err
	}
	return res.token, nil
}

func (c *Coordinator) refreshShared(ctx context.Context) (refreshResult, error) {
	var led atomic.Bool
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		led.Store(true)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case r := <-ch:
		if !led.Load() {
			metrics.TokenRefreshCoalesced.Inc()
		}
		res, _ := r.Val.(refreshResult)
		return res, r.Err
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}
}

// refresh performs one exchange. Only ever runs inside the singleflight group.
func (c *Coordinator) refresh(ctx context.Context) (refreshResult, error) {
	c.mu.Lock()
	gen := c.credGen
	c.mu.Unlock()

	failed := refreshResult{gen: gen}

	creds, ok, err := c.store.Get(ctx)
	if err != nil {
		metrics.IncRefresh("error")
		return failed, fmt.Errorf("read credentials: %w", err)
	}
	if !ok {
		metrics.IncRefresh("no_credentials")
		c.logger.Warn("auth.refresh_no_credentials")
		c.publish(ctx, model.NewAuthEvent(model.AuthEventRefreshFailed, "", ErrNoCredentials))
		return failed, ErrNoCredentials
	}

	start := time.Now()
	token, err := c.exchange(ctx, creds)
	if err != nil {
		result := "error"
		if errors.Is(err, httpclient.ErrUnauthorized) {
			result = "unauthorized"
		}
		metrics.IncRefresh(result)
		c.logger.Warn("auth.refresh_failed",
			zap.String("user", creds.Username),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		c.publish(ctx, model.NewAuthEvent(model.AuthEventRefreshFailed, creds.Username, err))
		return failed, err
	}

	if err := c.persistToken(ctx, gen, token); err != nil {
		if errors.Is(err, ErrSessionChanged) {
			metrics.IncRefresh("superseded")
			c.logger.Info("auth.refresh_superseded", zap.String("user", creds.Username))
		} else {
			metrics.IncRefresh("error")
		}
		return failed, err
	}

	metrics.IncRefresh("ok")
	c.logger.Info("auth.refresh_success",
		zap.String("user", creds.Username),
		zap.String("token", utils.MaskToken(token)),
		zap.Duration("elapsed", time.Since(start)))
	c.publish(ctx, model.NewAuthEvent(model.AuthEventRefresh, creds.Username, nil))

	return refreshResult{token: token, gen: gen}, nil
}

// persistToken stores token unless Login or Logout moved the credential
// generation past gen while the exchange was running.
func (c *Coordinator) persistToken(ctx context.Context, gen uint64, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credGen != gen {
		return ErrSessionChanged
	}
	if err := c.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Login stores the credentials and waits for a token obtained with them.
// An exchange already running with the previous credentials is awaited and
// then superseded by a fresh one.
func (c *Coordinator) Login(ctx context.Context, username, password string) (string, error) {
	c.mu.Lock()
	c.credGen++
	gen := c.credGen
	err := c.store.Set(ctx, model.Credentials{Username: username, Password: password})
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("store credentials: %w", err)
	}

	for {
		res, err := c.refreshShared(ctx)
		if res.gen < gen && ctx.Err() == nil {
			// joined an exchange that read the previous credentials
			continue
		}
		if err != nil {
			c.logger.Warn("auth.login_failed", zap.String("user", username), zap.Error(err))
			return "", err
		}
		c.logger.Info("auth.login_success", zap.String("user", username))
		c.publish(ctx, model.NewAuthEvent(model.AuthEventLogin, username, nil))
		return res.token, nil
	}
}

// LoginFromSecret logs in with credentials resolved from src.
func (c *Coordinator) LoginFromSecret(ctx context.Context, src CredentialSource, profile string) (string, error) {
	creds, err := src.Resolve(ctx, profile)
	if err != nil {
		return "", err
	}
	token, err := c.Login(ctx, creds.Username, creds.Password)
	if errors.Is(err, httpclient.ErrUnauthorized) {
		// the secret may have been rotated since it was cached
		src.Forget(profile)
	}
	return token, err
}

// Logout clears credentials, token and session data. A refresh still in
// flight finishes with ErrSessionChanged and stores nothing. Safe to call when
// already logged out.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.credGen++
	creds, _, _ := c.store.Get(ctx)
	err := c.store.Clear(ctx)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	c.logger.Info("auth.logout", zap.String("user", creds.Username))
	c.publish(ctx, model.NewAuthEvent(model.AuthEventLogout, creds.Username, nil))
	return nil
}

func (c *Coordinator) publish(ctx context.Context, ev model.AuthEvent) {
	if err := c.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.Debug("auth.event_dropped", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
