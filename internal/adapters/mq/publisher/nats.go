package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

const (
	defaultSubjectPrefix = "foursigma"
	maxReconnects        = 60
	reconnectWait        = 2 * time.Second
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS publishes events as JSON to "<prefix>.<kind>".
type NATS struct {
	conn   conn
	prefix string
	logger logger.Logger
}

// NATSOption configures a NATS publisher.
type NATSOption func(*natsOptions)

type natsOptions struct {
	prefix string
	token  string
}

// WithSubjectPrefix overrides the subject prefix.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(o *natsOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithToken authenticates with a server token.
func WithToken(token string) NATSOption {
	return func(o *natsOptions) { o.token = token }
}

// NewNATS connects to url. The connection retries in the background, so a
// broker that is briefly down at startup does not fail the service.
func NewNATS(_ context.Context, url string, opts ...NATSOption) (*NATS, error) {
	o := natsOptions{prefix: defaultSubjectPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Named("nats")

	natsOpts := []nats.Option{
		nats.Name("foursigma"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
	}
	if o.token != "" {
		natsOpts = append(natsOpts, nats.Token(o.token))
	}

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newNATS(nc, o.prefix, log), nil
}

func newNATS(c conn, prefix string, log logger.Logger) *NATS {
	return &NATS{conn: c, prefix: prefix, logger: log}
}

// Publish implements Publisher.
func (p *NATS) Publish(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events are passed by value
	payload, err := json.Marshal(e)
	if err != nil {
		metrics.RecordEventPublishError(string(e.Kind))
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}

	subject := Subject(p.prefix, e.Kind)
	if err := p.conn.Publish(subject, payload); err != nil {
		metrics.RecordEventPublishError(string(e.Kind))
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	metrics.RecordEventPublished(string(e.Kind))
	p.logger.Debug(ctx, "event published",
		logger.String("subject", subject),
		logger.String("event_id", e.ID),
	)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATS) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn(context.Background(), "nats drain failed", logger.Error(err))
	}
}
