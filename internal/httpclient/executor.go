package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/metrics"
	"github.com/Checker-Finance/chat-client/internal/rate"
)

// HeaderRequestID correlates client logs with backend logs.
const HeaderRequestID = "X-Request-ID"

// Executor handles rate-limited HTTP execution, status mapping and JSON decoding.
// It never retries: retry policy belongs to the caller.
type Executor struct {
	logger  *zap.Logger
	rateMgr *rate.Manager
	http    *http.Client
	tag     string
}

// New creates an Executor. rateMgr may be nil to disable throttling.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, tag string) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:  logger,
		rateMgr: rateMgr,
		http:    httpClient,
		tag:     tag,
	}
}

// DoJSON executes req and JSON-decodes a 2xx response body into out (if non-nil).
// A 401 yields ErrUnauthorized, any other non-2xx an *HTTPError, and a failure
// to get a response at all wraps ErrTransport.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	body, err := e.Do(ctx, req, rateLimitKey)
	if err != nil {
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.tag+".decode_failed",
				zap.Error(err),
				zap.String("path", req.URL.Path),
				zap.Int("bytes", len(body)))
			return fmt.Errorf("decode failed: %w", err)
		}
	}
	return nil
}

// Do executes req and returns the raw body of a 2xx response.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey string) ([]byte, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	route := RouteLabel(req.URL.Path)

	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	metrics.ObserveDuration(metrics.RequestDuration, start, route, req.Method)
	if err != nil {
		metrics.IncRequest(route, req.Method, "transport_error")
		e.logger.Warn(e.tag+".http_failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	metrics.IncRequest(route, req.Method, strconv.Itoa(resp.StatusCode))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Debug(e.tag+".http_status",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
		return nil, StatusError(resp.StatusCode, body)
	}

	e.logger.Debug(e.tag+".http_success",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return body, nil
}

// RouteLabel collapses numeric path segments so metrics stay low-cardinality:
// /conversation/42 -> /conversation/:id
func RouteLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
