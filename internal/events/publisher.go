package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/metrics"
	"github.com/Checker-Finance/chat-client/pkg/model"
)

// Publisher emits auth lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev model.AuthEvent) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, model.AuthEvent) error { return nil }

// msgPublisher is the subset of *nats.Conn used here.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher sends each event as JSON on <prefix>.auth.<type>.
type NATSPublisher struct {
	conn    msgPublisher
	prefix  string
	service string
	logger  *zap.Logger
}

// NewNATSPublisher wraps a NATS connection.
func NewNATSPublisher(nc *nats.Conn, prefix, service string, logger *zap.Logger) *NATSPublisher {
	return newNATSPublisher(nc, prefix, service, logger)
}

func newNATSPublisher(conn msgPublisher, prefix, service string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, service: service, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t model.AuthEventType) string {
	return fmt.Sprintf("%s.auth.%s", p.prefix, t)
}

func (p *NATSPublisher) Publish(ctx context.Context, ev model.AuthEvent) error {
	subject := p.Subject(ev.Type)

	data, err := json.Marshal(ev)
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(subject).Inc()
		return fmt.Errorf("marshal auth event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{string(ev.Type)},
			"correlation_id": []string{ev.ID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		metrics.EventPublishErrors.WithLabelValues(subject).Inc()
		p.logger.Warn("events.publish_failed",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("events.published",
		zap.String("subject", subject),
		zap.String("event_id", ev.ID.String()))
	return nil
}

// Connect dials NATS with the options used by the CLI.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.MaxReconnects(3),
	)
}
