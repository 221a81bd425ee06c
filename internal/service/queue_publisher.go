package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/reviewlens/reviewlens/internal/queue"
)

// AMQPUsagePublisher publishes UsageRecordedEvents to the
// "usage.recorded" queue.  Publishing is strictly best effort: errors
// are logged and returned so the caller (the usage worker) can ignore
// them without interrupting request handling.  The connection is opened
// lazily and re-dialed after a failure.
type AMQPUsagePublisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPUsagePublisher(url string, log *zap.Logger) *AMQPUsagePublisher {
	return &AMQPUsagePublisher{url: url, log: log}
}

// channel returns a live channel with the queue declared, dialing the
// broker if needed.  Caller holds the lock.
func (p *AMQPUsagePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// Durable so records survive broker restarts.
	if _, err := ch.QueueDeclare(q.UsageQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// PublishUsageRecorded sends one event, persistent, to the default
// exchange with the queue name as routing key.
func (p *AMQPUsagePublisher) PublishUsageRecorded(ctx context.Context, ev q.UsageRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.log.Debug("usage publisher unavailable", zap.Error(err))
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.UsageQueueName, false, false, pub); err != nil {
		// Drop the channel so the next publish re-dials.
		_ = p.ch.Close()
		_ = p.conn.Close()
		p.ch, p.conn = nil, nil
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPUsagePublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}
