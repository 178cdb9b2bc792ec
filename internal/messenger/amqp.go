package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
)

// AMQP publishes notifications to a durable queue, for consumers like an
// external blocker worker. The connection is established lazily on first
// send and rebuilt after a publish failure.
type AMQP struct {
	url   string
	queue string
	log   zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQP builds an AMQP messenger.
func NewAMQP(cfg config.AMQPConfig, log zerolog.Logger) *AMQP {
	return &AMQP{
		url:   cfg.URL,
		queue: cfg.Queue,
		log:   log.With().Str("component", "amqp").Logger(),
	}
}

// Name implements Messenger.
func (a *AMQP) Name() string { return "amqp" }

// Send implements Messenger.
func (a *AMQP) Send(message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureChannel(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.ch.PublishWithContext(ctx, "", a.queue, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         []byte(message),
	})
	if err != nil {
		a.reset()
		return fmt.Errorf("publishing to %s: %w", a.queue, err)
	}
	return nil
}

// Close shuts the connection down.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	a.ch = nil
	return err
}

// ensureChannel dials and declares the durable queue. Caller holds a.mu.
func (a *AMQP) ensureChannel() error {
	if a.ch != nil {
		return nil
	}

	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("connecting to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declaring queue %s: %w", a.queue, err)
	}

	a.conn = conn
	a.ch = ch
	a.log.Debug().Str("queue", a.queue).Msg("amqp channel ready")
	return nil
}

// reset drops the broken connection so the next send redials. Caller holds
// a.mu.
func (a *AMQP) reset() {
	if a.conn != nil {
		a.conn.Close()
	}
	a.conn = nil
	a.ch = nil
}
