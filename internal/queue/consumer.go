// Package queue also contains the background consumer that listens to the
// ledger queues and appends one line per event to <dir>/ledger.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LedgerLogFile is the file name the consumer appends to.
const LedgerLogFile = "ledger.log"

// Consumer drains the invoice queues into an audit log file.
type Consumer struct {
	URL    string
	LogDir string
	Log    *slog.Logger

	mu sync.Mutex // serializes appends
}

// Run connects to RabbitMQ, declares both ledger queues (durable) and
// consumes them until ctx is cancelled. It reconnects with backoff when
// the broker is unreachable or drops the connection; processing errors
// reject the offending message so the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("ledger-consumer: failed to dial broker", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("ledger-consumer: consume loop ended; reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("ledger-consumer: set QoS failed", slog.Any("error", err))
	}

	deliveries := make(map[string]<-chan amqp.Delivery, 2)
	for _, name := range []string{InvoiceCreatedQueue, InvoiceSettledQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		deliveries[name] = msgs
	}

	created, settled := deliveries[InvoiceCreatedQueue], deliveries[InvoiceSettledQueue]
	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-created:
			queue = InvoiceCreatedQueue
		case d, ok = <-settled:
			queue = InvoiceSettledQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(queue, d.Body); err != nil {
			log.Warn("ledger-consumer: handle message failed", slog.String("queue", queue), slog.Any("error", err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

// Handle decodes one message from queue and appends its log line.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case InvoiceCreatedQueue:
		var ev InvoiceCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatCreated(ev)
	case InvoiceSettledQueue:
		var ev InvoiceSettledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatSettled(ev)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	return c.appendLine(line)
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.LogDir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LedgerLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatCreated renders an invoice.created event as one log line.
func FormatCreated(ev InvoiceCreatedEvent) string {
	lines := make([]string, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		lines = append(lines, fmt.Sprintf("%d:%sx%s", l.InventoryID, l.Quantity, l.PricePerUnit))
	}
	return fmt.Sprintf("[%s] Invoice created | invoice_id=%d | contact_id=%d | total=%s | lines=[%s] | event_id=%s\n",
		ev.CreatedAt, ev.InvoiceID, ev.ContactID, ev.TotalAmount, strings.Join(lines, ","), ev.EventID)
}

// FormatSettled renders an invoice.settled event as one log line.
func FormatSettled(ev InvoiceSettledEvent) string {
	return fmt.Sprintf("[%s] Invoice settled | invoice_id=%d | contact_id=%d | paid=%s | delta=%s | status=%s | event_id=%s\n",
		ev.SettledAt, ev.InvoiceID, ev.ContactID, ev.PaidAmount, ev.PaidDelta, ev.Status, ev.EventID)
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
