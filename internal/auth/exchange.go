package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/httpclient"
	"github.com/Checker-Finance/chat-client/pkg/model"
)

const (
	tokenPath    = "/auth/token"
	registerPath = "/auth/register"
	rateKey      = "auth"
)

// exchange trades credentials for an access token. The backend answers either
// {"access_token": ...} or its envelope {"status", "message", "data": {"access_token": ...}}.
func (c *Coordinator) exchange(ctx context.Context, creds model.Credentials) (string, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.exec.Do(ctx, req, rateKey)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("decode token response: invalid JSON (%d bytes)", len(body))
	}

	for _, r := range gjson.GetManyBytes(body, "access_token", "data.access_token") {
		if tok := r.String(); tok != "" {
			return tok, nil
		}
	}
	return "", ErrEmptyToken
}

// Register creates an account. It does not log in.
func (c *Coordinator) Register(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(model.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.exec.DoJSON(ctx, req, rateKey, nil); err != nil {
		c.logger.Warn("auth.register_failed",
			zap.String("user", username),
			zap.Int("status", httpclient.StatusOf(err)),
			zap.Error(err))
		return err
	}
	c.logger.Info("auth.register_success", zap.String("user", username))
	return nil
}
