package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	q "github.com/iliyamo/backoffice-ledger/internal/queue"
)

// QueuePublisher publishes ledger events to RabbitMQ. It keeps one
// connection and redials after the broker drops it. Errors are logged and
// returned so the caller can choose to ignore them.
type QueuePublisher struct {
	url string
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

var _ ledger.EventPublisher = (*QueuePublisher)(nil)

// NewQueuePublisher returns a publisher for the broker at url. It does not
// dial until the first publish.
func NewQueuePublisher(url string, log *slog.Logger) *QueuePublisher {
	if log == nil {
		log = slog.Default()
	}
	return &QueuePublisher{url: url, log: log}
}

// PublishInvoiceCreated publishes to the invoice.created queue.
func (p *QueuePublisher) PublishInvoiceCreated(ctx context.Context, ev q.InvoiceCreatedEvent) error {
	return p.publish(ctx, q.InvoiceCreatedQueue, ev.EventID, ev)
}

// PublishInvoiceSettled publishes to the invoice.settled queue.
func (p *QueuePublisher) PublishInvoiceSettled(ctx context.Context, ev q.InvoiceSettledEvent) error {
	return p.publish(ctx, q.InvoiceSettledQueue, ev.EventID, ev)
}

// Close closes the broker connection, if any.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *QueuePublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *QueuePublisher) publish(ctx context.Context, queueName, eventID string, event any) error {
	conn, err := p.connection()
	if err != nil {
		p.log.WarnContext(ctx, "rabbitmq: dial failed", slog.Any("error", err))
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		p.log.WarnContext(ctx, "rabbitmq: channel open failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		p.log.WarnContext(ctx, "rabbitmq: queue declare failed", slog.String("queue", queueName), slog.Any("error", err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.WarnContext(ctx, "rabbitmq: marshal event failed", slog.Any("error", err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    eventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		p.log.WarnContext(ctx, "rabbitmq: publish failed", slog.String("queue", queueName), slog.Any("error", err))
		return err
	}
	return nil
}
