package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange   = "legal.updates"
	defaultRoutingKey = "legal.update.detected"
)

// Publisher sends legal-update events.
type Publisher interface {
	PublishLegalUpdate(ctx context.Context, event LegalUpdateEvent) error
	Close() error
}

// AMQPConfig configures the broker connection for both sides.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Queue      string
}

func (c *AMQPConfig) applyDefaults() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("amqp url required")
	}
	if c.Exchange == "" {
		c.Exchange = defaultExchange
	}
	if c.RoutingKey == "" {
		c.RoutingKey = defaultRoutingKey
	}
	return nil
}

// AMQPPublisher publishes events to a topic exchange. The channel is
// serialized with a mutex; amqp091 channels are not safe for concurrent
// publishes.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	key      string
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: cfg.Exchange, key: cfg.RoutingKey}, nil
}

// PublishLegalUpdate sends one event as persistent JSON.
func (p *AMQPPublisher) PublishLegalUpdate(ctx context.Context, event LegalUpdateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, p.key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// AMQPConsumer reads legal-update events from a durable queue bound to the
// exchange.
type AMQPConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPConsumer connects, declares the exchange and queue, and binds them.
func NewAMQPConsumer(cfg AMQPConfig) (*AMQPConsumer, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Queue) == "" {
		return nil, errors.New("amqp queue required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	return &AMQPConsumer{conn: conn, ch: ch, queue: cfg.Queue}, nil
}

// Start consumes events until ctx is cancelled or the channel closes.
// Handler errors nack without requeue; malformed bodies are dropped.
func (c *AMQPConsumer) Start(ctx context.Context, handler func(context.Context, LegalUpdateEvent) error) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				var event LegalUpdateEvent
				if err := json.Unmarshal(delivery.Body, &event); err != nil {
					slog.Warn("drop malformed legal-update event", "error", err)
					_ = delivery.Nack(false, false)
					continue
				}
				if err := handler(ctx, event); err != nil {
					slog.Error("handle legal-update event", "update_id", event.UpdateID, "error", err)
					_ = delivery.Nack(false, false)
					continue
				}
				_ = delivery.Ack(false)
			}
		}
	}()
	return nil
}

// Close shuts down the channel and connection.
func (c *AMQPConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
