package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/pkg/logger"
)

var (
	// Tracks outbound API calls to the chat backend.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_api_requests_total",
			Help: "Total number of chat backend requests (by endpoint, method and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Measures duration of API requests to the chat backend.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_api_request_duration_seconds",
			Help:    "Duration of chat backend requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// Token exchanges performed, by result ("ok" | "unauthorized" | "error" | "no_credentials").
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_token_refresh_total",
			Help: "Number of token exchanges performed.",
		},
		[]string{"result"},
	)

	// Callers that joined an already in-flight refresh instead of starting one.
	TokenRefreshCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_token_refresh_coalesced_total",
			Help: "Number of refresh requests served by an in-flight exchange.",
		},
	)

	// Authenticated calls retried after a refresh, by trigger ("no_token" | "unauthorized").
	AuthRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_api_auth_retries_total",
			Help: "Number of authenticated requests retried after refreshing the token.",
		},
		[]string{"reason"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_event_publish_errors_total",
			Help: "Number of auth event publish failures.",
		},
		[]string{"subject"},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncRequest(endpoint, method, status string) {
	RequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncRefresh(result string) {
	TokenRefreshTotal.WithLabelValues(result).Inc()
}

func IncAuthRetry(reason string) {
	AuthRetriesTotal.WithLabelValues(reason).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on addr in the background. The returned server
// can be shut down by the caller. A listen failure is logged to log, or to the
// global logger when log is nil.
func StartServer(addr string, log *zap.Logger) *http.Server {
	if log == nil {
		log = logger.L()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics.listen_failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
