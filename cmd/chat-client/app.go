package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/api"
	"github.com/Checker-Finance/chat-client/internal/auth"
	"github.com/Checker-Finance/chat-client/internal/chat"
	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/internal/events"
	"github.com/Checker-Finance/chat-client/internal/httpclient"
	"github.com/Checker-Finance/chat-client/internal/rate"
	intsecrets "github.com/Checker-Finance/chat-client/internal/secrets"
	"github.com/Checker-Finance/chat-client/pkg/config"
	"github.com/Checker-Finance/chat-client/pkg/logger"
	"github.com/Checker-Finance/chat-client/pkg/model"
	pkgsecrets "github.com/Checker-Finance/chat-client/pkg/secrets"
	"github.com/Checker-Finance/chat-client/pkg/utils"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg    *config.Config
	store  credstore.Store
	auth   *auth.Coordinator
	client *api.Client
	chat   *chat.Service

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.L()
	a := &app{cfg: cfg}

	// --- Credential store ---
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = st

	// --- Auth events ---
	var pub events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			// events are best effort; keep going without them
			log.Warn("nats.connect_failed", zap.String("url", utils.MaskDSN(cfg.NATSURL)), zap.Error(err))
		} else {
			pub = events.NewNATSPublisher(nc, cfg.EventsSubject, cfg.ServiceName, logger.Named("events"))
			a.closers = append(a.closers, func() { _ = nc.Drain() })
		}
	}

	// --- Rate limiter + executor ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateRPS,
		Burst:             cfg.RateBurst,
	})
	exec := httpclient.New(logger.Named("http"), rateMgr, &http.Client{Timeout: cfg.HTTPTimeout}, "backend")

	a.auth = auth.NewCoordinator(st, exec, auth.Options{
		BaseURL:        cfg.BackendURL,
		RefreshTimeout: cfg.RefreshTimeout,
		Events:         pub,
		Logger:         logger.Named("auth"),
	})
	a.client = api.NewClient(cfg.BackendURL, exec, st, a.auth, logger.Named("api"))
	a.chat = chat.NewService(a.client, st, logger.Named("chat"))

	log.Debug("app.ready",
		zap.String("backend", cfg.BackendURL),
		zap.String("store", cfg.StoreBackend))
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (credstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		st, err := credstore.NewRedisStore(ctx, credstore.RedisOptions{
			Addr:       cfg.RedisAddr,
			DB:         cfg.RedisDB,
			Password:   cfg.RedisPass,
			Prefix:     cfg.RedisPrefix,
			SessionTTL: cfg.SessionTTL,
		}, logger.Named("credstore"))
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		return st, nil
	case config.StoreMemory:
		return credstore.NewMemoryStore(cfg.SessionTTL), nil
	case config.StoreFile, "":
		st := credstore.NewFileStore(logger.Named("credstore"), cfg.StorePath, cfg.SessionTTL)
		log.Debug("credstore.file", zap.String("path", st.Path()))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// newSecretsProvider is swapped out in tests.
var newSecretsProvider = func(ctx context.Context, region string) (pkgsecrets.Provider, error) {
	return pkgsecrets.NewAWSProvider(ctx, region)
}

// secretSource resolves login credentials from AWS Secrets Manager.
func (a *app) secretSource(ctx context.Context) (*intsecrets.CredentialResolver, error) {
	provider, err := newSecretsProvider(ctx, a.cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init AWS provider: %w", err)
	}
	cache := pkgsecrets.NewCache[model.Credentials](30 * time.Minute)
	return intsecrets.NewCredentialResolver(logger.Named("secrets"), a.cfg.Env, provider, cache), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if c, ok := a.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
