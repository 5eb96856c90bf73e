// Package api issues JSON requests against the chat backend. Authenticated
// calls attach the stored bearer token and, on an authorization failure,
// refresh it once through the auth coordinator before retrying.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/internal/httpclient"
	"github.com/Checker-Finance/chat-client/internal/metrics"
)

// ErrNoAccessToken is returned before any network call when no token is stored.
var ErrNoAccessToken = errors.New("no access token")

// Refresher produces a fresh access token. *auth.Coordinator implements it.
type Refresher interface {
	RefreshToken(ctx context.Context) (string, error)
}

// Request describes one backend call. It is never modified by the client.
type Request struct {
	Endpoint string            // path relative to the base URL, e.g. "/conversations"
	Method   string            // defaults to GET
	Body     any               // JSON-encoded when non-nil
	Headers  map[string]string // merged over the defaults; may override them
}

// Client performs public and authenticated backend requests.
type Client struct {
	logger    *zap.Logger
	baseURL   string
	exec      *httpclient.Executor
	store     credstore.Store
	refresher Refresher
}

// NewClient builds a Client. refresher is consulted only by Do.
func NewClient(baseURL string, exec *httpclient.Executor, store credstore.Store, refresher Refresher, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:    logger,
		baseURL:   baseURL,
		exec:      exec,
		store:     store,
		refresher: refresher,
	}
}

// Public sends req without credentials and decodes a 2xx JSON body into out.
func (c *Client) Public(ctx context.Context, req Request, out any) error {
	httpReq, err := c.build(ctx, req, "")
	if err != nil {
		return err
	}
	return c.exec.DoJSON(ctx, httpReq, rateKey(req), out)
}

// Do sends req with the stored bearer token. A missing token or a 401 on the
// first attempt triggers one refresh and one retry; the retry's outcome is final.
// Every other failure is returned as is.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	const (
		firstAttempt = iota
		retried
	)

	for attempt := firstAttempt; ; attempt++ {
		err := c.DoOnce(ctx, req, out)
		if err == nil || attempt == retried || !needsRefresh(err) {
			return err
		}

		reason := "unauthorized"
		if errors.Is(err, ErrNoAccessToken) {
			reason = "no_token"
		}
		metrics.IncAuthRetry(reason)
		c.logger.Debug("api.refresh_and_retry",
			zap.String("endpoint", req.Endpoint),
			zap.String("reason", reason))

		if _, err := c.refresher.RefreshToken(ctx); err != nil {
			return err
		}
	}
}

// DoOnce sends req with the stored bearer token without any refresh.
func (c *Client) DoOnce(ctx context.Context, req Request, out any) error {
	token, ok, err := c.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	if !ok {
		return ErrNoAccessToken
	}

	httpReq, err := c.build(ctx, req, token)
	if err != nil {
		return err
	}
	return c.exec.DoJSON(ctx, httpReq, rateKey(req), out)
}

func needsRefresh(err error) bool {
	return errors.Is(err, ErrNoAccessToken) || errors.Is(err, httpclient.ErrUnauthorized)
}

// build assembles a fresh *http.Request; called per attempt so a retry never
// reuses a consumed body.
func (c *Client) build(ctx context.Context, req Request, token string) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, req.Endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, req.Endpoint, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func rateKey(req Request) string {
	return httpclient.RouteLabel(req.Endpoint)
}
