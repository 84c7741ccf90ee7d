package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueue = "auth.email"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueMailer hands messages to RabbitMQ; the mailer worker performs the
// actual delivery. Send succeeds once the broker accepted the message.
type QueueMailer struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   publisher
}

func NewQueueMailer(url, queue string, logger *zap.Logger) *QueueMailer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueMailer{url: url, queue: queue, logger: logger}
}

func (m *QueueMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch, err := m.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", m.queue, false, false, pub); err != nil {
		m.resetLocked()
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

func (m *QueueMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLocked()
}

func (m *QueueMailer) channel() (publisher, error) {
	if m.ch != nil {
		return m.ch, nil
	}
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(m.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	m.conn = conn
	m.ch = ch
	return ch, nil
}

func (m *QueueMailer) resetLocked() error {
	m.ch = nil
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		m.logger.Warn("rabbitmq close failed", zap.Error(err))
		return err
	}
	return nil
}
