package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultSubject = "listing-status-changed"

// EventPublisher hands status-change events to the broker without waiting for delivery.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event domain.StatusChangedEvent) error
	Close()
}

// asyncPublisher is the part of nats.JetStreamContext the publisher needs.
type asyncPublisher interface {
	PublishMsgAsync(m *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

type Options struct {
	Stream     string
	Subject    string
	AckTimeout time.Duration
}

type natsPublisher struct {
	conn       *nats.Conn
	js         asyncPublisher
	subject    string
	ackTimeout time.Duration
	loggers    *logger.Loggers
	metrics    *metrics.MessagingMetrics
	tracer     trace.Tracer
	pending    sync.WaitGroup
}

// NewNATSPublisher connects to JetStream and makes sure the stream that captures
// the subject exists.
func NewNATSPublisher(url string, connectTimeout time.Duration, opts Options, loggers *logger.Loggers, m *metrics.MessagingMetrics) (EventPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("listing-service"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				loggers.ErrorLogger.Error("NATS disconnected", utils.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			loggers.InfoLogger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	if opts.Stream != "" {
		if _, err := js.StreamInfo(opts.Stream); errors.Is(err, nats.ErrStreamNotFound) {
			_, err = js.AddStream(&nats.StreamConfig{
				Name:       opts.Stream,
				Subjects:   []string{subject},
				Duplicates: 2 * time.Minute,
			})
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to create stream %s: %w", opts.Stream, err)
			}
			loggers.InfoLogger.Info("JetStream stream created", zap.String("stream", opts.Stream), zap.String("subject", subject))
		} else if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to look up stream %s: %w", opts.Stream, err)
		}
	}

	p := newPublisher(js, subject, opts.AckTimeout, loggers, m)
	p.conn = conn
	return p, nil
}

func newPublisher(js asyncPublisher, subject string, ackTimeout time.Duration, loggers *logger.Loggers, m *metrics.MessagingMetrics) *natsPublisher {
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	return &natsPublisher{
		js:         js,
		subject:    subject,
		ackTimeout: ackTimeout,
		loggers:    loggers,
		metrics:    m,
		tracer:     otel.Tracer("listing-service/messaging"),
	}
}

// PublishStatusChanged enqueues the event and returns immediately. The broker ack is
// awaited in the background and only logged; a uuid message id lets JetStream drop
// duplicates.
func (p *natsPublisher) PublishStatusChanged(ctx context.Context, event domain.StatusChangedEvent) error {
	_, span := p.tracer.Start(ctx, "Messaging PublishStatusChanged")
	defer span.End()

	msgID := uuid.NewString()
	span.SetAttributes(
		attribute.String("messaging.subject", p.subject),
		attribute.String("messaging.message_id", msgID),
		attribute.Int64("listing.id", event.ListingID),
	)

	payload, err := json.Marshal(event)
	if err != nil {
		p.metrics.PublishCount.WithLabelValues(p.subject, "error").Inc()
		span.RecordError(err)
		return fmt.Errorf("failed to encode status event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, msgID)
	msg.Data = payload

	future, err := p.js.PublishMsgAsync(msg)
	if err != nil {
		p.metrics.PublishCount.WithLabelValues(p.subject, "error").Inc()
		span.RecordError(err)
		return fmt.Errorf("failed to publish status event: %w", err)
	}

	p.pending.Add(1)
	go p.awaitAck(future, msgID, event.ListingID, time.Now())

	return nil
}

func (p *natsPublisher) awaitAck(future nats.PubAckFuture, msgID string, listingID int64, startTime time.Time) {
	defer p.pending.Done()

	status := "success"
	defer func() {
		p.metrics.PublishCount.WithLabelValues(p.subject, status).Inc()
		p.metrics.AckDuration.WithLabelValues(p.subject, status).Observe(time.Since(startTime).Seconds())
	}()

	select {
	case ack := <-future.Ok():
		p.loggers.InfoLogger.Info("Status event acknowledged",
			zap.String("message_id", msgID),
			zap.Int64("listing_id", listingID),
			zap.String("stream", ack.Stream),
			zap.Uint64("sequence", ack.Sequence),
			zap.Bool("duplicate", ack.Duplicate),
		)
	case err := <-future.Err():
		status = "error"
		p.loggers.ErrorLogger.Error("Status event was not acknowledged",
			zap.String("message_id", msgID),
			zap.Int64("listing_id", listingID),
			utils.Err(err),
		)
	case <-time.After(p.ackTimeout):
		status = "timeout"
		p.loggers.ErrorLogger.Error("Timed out waiting for status event ack",
			zap.String("message_id", msgID),
			zap.Int64("listing_id", listingID),
		)
	}
}

// Close waits for outstanding acks and drains the connection.
func (p *natsPublisher) Close() {
	p.pending.Wait()
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.loggers.ErrorLogger.Error("Failed to drain NATS connection", utils.Err(err))
		}
	}
}
