package publish

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roach88/poe/internal/ir"
)

// DefaultQueue is the queue used when AMQPConfig.Queue is empty.
const DefaultQueue = "poe.events"

// AMQPConfig describes the broker connection.
type AMQPConfig struct {
	URL   string
	Queue string
}

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable RabbitMQ queue.
//
// Message bodies are the canonical JSON of the event. MessageId is the call
// ID, so consumers can deduplicate redeliveries.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    channel
	queue string
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp: url is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp: declare queue %q: %w", queue, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends ev as a persistent message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, ev ir.EventRecord) error {
	if p == nil || p.ch == nil {
		return errors.New("amqp: publisher not initialized")
	}
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", ev.CallID, err)
	}
	return nil
}

// Queue returns the destination queue name.
func (p *AMQPPublisher) Queue() string {
	return p.queue
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func eventMessage(ev ir.EventRecord) (amqp.Publishing, error) {
	body, err := ir.EventBody(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("amqp: encode event %s: %w", ev.CallID, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.CallID,
		Type:         ev.Kind,
		Body:         body,
	}, nil
}
