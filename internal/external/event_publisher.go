package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// EventPublisher fans domain events (registrations, distributions,
// withdrawals) out to the message broker. Publishing is best-effort:
// callers log failures but never roll back on them.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

type rabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *PublisherConfig
}

type PublisherConfig struct {
	URL           string
	ExchangeName  string
	RetryAttempts int
	RetryDelay    time.Duration
	MessageTTL    time.Duration
}

func NewRabbitPublisher(config *PublisherConfig) (EventPublisher, error) {
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.MessageTTL == 0 {
		config.MessageTTL = 24 * time.Hour
	}

	p := &rabbitPublisher{config: config}

	if err := p.connect(); err != nil {
		return nil, err
	}

	if err := p.setupExchange(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	var err error
	p.conn, err = amqp.Dial(p.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	return nil
}

func (p *rabbitPublisher) setupExchange() error {
	err := p.channel.ExchangeDeclare(
		p.config.ExchangeName, // name
		"topic",               // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", p.config.ExchangeName, err)
	}
	return nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		MessageId:    fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		DeliveryMode: amqp.Persistent,
		Expiration:   fmt.Sprintf("%d", p.config.MessageTTL.Milliseconds()),
	}

	var publishErr error
	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		publishErr = p.channel.PublishWithContext(
			ctx,
			p.config.ExchangeName, // exchange
			routingKey,            // routing key
			false,                 // mandatory
			false,                 // immediate
			publishing,
		)

		if publishErr == nil {
			return nil
		}

		if p.conn.IsClosed() {
			if reconnectErr := p.reconnect(); reconnectErr != nil {
				logrus.WithError(reconnectErr).Warn("Failed to reconnect to RabbitMQ")
			}
		}

		if attempt < p.config.RetryAttempts-1 {
			time.Sleep(p.config.RetryDelay * time.Duration(attempt+1))
		}
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", p.config.RetryAttempts, publishErr)
}

func (p *rabbitPublisher) reconnect() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}

	if err := p.connect(); err != nil {
		return err
	}

	return p.setupExchange()
}

func (p *rabbitPublisher) Close() error {
	var errs []error

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}

	return nil
}

// NoopPublisher is injected when the broker is disabled so services can
// publish unconditionally.
type NoopPublisher struct{}

func NewNoopPublisher() EventPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
