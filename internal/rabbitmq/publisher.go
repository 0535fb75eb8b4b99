package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"social-client/internal/logger"
	"social-client/internal/observability"
	"social-client/internal/telemetry"
)

// ErrBrokerGone is returned by Publish after the broker dropped the
// connection. The client does not reconnect; events are lost until restart.
var ErrBrokerGone = errors.New("rabbitmq connection closed")

const publishTimeout = 2 * time.Second

// Publisher publishes client telemetry and audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher on a durable topic exchange, or a
// noop publisher when the broker is not configured or unreachable.
func NewPublisher(amqpURL, exchange string, log *slog.Logger) Publisher {
	log = logger.Component(log, "rabbitmq")
	if amqpURL == "" {
		return newNoop("empty amqp url", log)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return newNoop(err.Error(), log)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return newNoop(err.Error(), log)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return newNoop(fmt.Sprintf("declare exchange %s: %v", exchange, err), log)
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go p.watch(closed)

	log.Info("rabbitmq connected", "exchange", exchange)
	return p
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	gone     atomic.Bool
	log      *slog.Logger
}

func (p *amqpPublisher) watch(closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		p.log.Warn("rabbitmq connection lost", "code", err.Code, "reason", err.Reason)
	}
	p.gone.Store(true)
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	if p.gone.Load() {
		observability.IncAMQPPublishError()
		return ErrBrokerGone
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %T: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         eventType(event),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		observability.IncAMQPPublishError()
		p.log.Warn("rabbitmq publish failed", "routing_key", routingKey, "error", err)
		return err
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.gone.Store(true)
	_ = p.ch.Close()
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// eventType names the AMQP message type after the envelope kind.
func eventType(event any) string {
	switch envelope := event.(type) {
	case telemetry.AuditEnvelope:
		return envelope.EventType
	case observability.EventEnvelope:
		return envelope.EventName
	default:
		return ""
	}
}

type noopPublisher struct {
	reason string
	log    *slog.Logger
}

func newNoop(reason string, log *slog.Logger) noopPublisher {
	log.Warn("rabbitmq disabled, using noop", "reason", reason)
	return noopPublisher{reason: reason, log: log}
}

func (p noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	if t := eventType(event); t != "" {
		p.log.Debug("rabbitmq noop publish", "routing_key", routingKey, "type", t)
		return nil
	}
	p.log.Debug("rabbitmq noop publish", "routing_key", routingKey)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason explains why a noop publisher was chosen.
func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
