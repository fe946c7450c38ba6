// Package amqp moves raw notification messages between device bridges and
// the ingest worker over RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"khata/internal/core"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 60 * time.Second

	// How long a partial consume batch waits before flushing.
	batchFlushInterval = time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	// Circuit breaker state, shared by publishers across goroutines.
	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// isCircuitOpen reports whether publishing should be short-circuited. An
// open circuit transitions to half-open once openTimeout has passed, letting
// the next publish probe the broker.
func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}

	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()

	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	failures := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if failures >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns the wait before reconnect attempt n, capped at
// 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second * time.Duration(1<<attempt)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// isConnectionError distinguishes transport failures (worth a reconnect)
// from application errors (not).
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// PublishRawMessage publishes one notification message for the ingest
// worker. Delivery is persistent; the call is bounded to five seconds.
func (c *Client) PublishRawMessage(ctx context.Context, msg core.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing publish")
	}

	body, err := NewRawMessageEnvelope(msg).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	slog.InfoContext(ctx, "Published raw message",
		"message_id", msg.ID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeRawMessageBatches delivers queued messages to handler in batches of
// up to batchSize until the context ends, flushing a partial batch after
// batchFlushInterval. Malformed or invalid payloads are rejected without
// requeue. The whole batch is acked on a nil handler return and requeued on
// error; storage upserts on message_id, so a redelivered batch lands each
// record once. Connection loss triggers reconnects with exponential backoff.
func (c *Client) ConsumeRawMessageBatches(ctx context.Context, batchSize int, handler func([]core.RawMessage) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	return c.consumeWithReconnect(ctx, func(ctx context.Context) error {
		return c.consumeBatchesOnce(ctx, batchSize, handler)
	})
}

func (c *Client) consumeWithReconnect(ctx context.Context, consume func(context.Context) error) error {
	attempt := 0
	for {
		err := consume(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"error", err, "attempt", attempt, "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed", "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeBatchesOnce(ctx context.Context, batchSize int, handler func([]core.RawMessage) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming raw message batches",
		"queue", c.queueName, "batch_size", batchSize)

	pending := make([]amqp091.Delivery, 0, batchSize)
	batch := make([]core.RawMessage, 0, batchSize)

	// Ack(true)/Nack(true, ...) settle every outstanding delivery up to the
	// last tag, so one call covers the whole batch.
	flush := func() {
		if len(pending) == 0 {
			return
		}
		last := pending[len(pending)-1]
		if err := handler(batch); err != nil {
			slog.ErrorContext(ctx, "Failed to handle message batch",
				"error", err, "size", len(batch))
			last.Nack(true, true)
		} else {
			last.Ack(true)
			slog.InfoContext(ctx, "Processed raw message batch", "size", len(batch))
		}
		pending = pending[:0]
		batch = batch[:0]
	}

	timer := time.NewTimer(batchFlushInterval)
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(batchFlushInterval)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			slog.InfoContext(ctx, "Stopping batch consumption", "reason", ctx.Err())
			return nil
		case <-timer.C:
			flush()
			timer.Reset(batchFlushInterval)
		case delivery, ok := <-msgs:
			if !ok {
				// The broker requeues whatever is still unacked.
				return fmt.Errorf("message channel closed: connection closed")
			}

			envelope, err := RawMessageEnvelopeFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}
			if err := envelope.Validate(); err != nil {
				slog.ErrorContext(ctx, "Rejected invalid message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			pending = append(pending, delivery)
			batch = append(batch, envelope.Message())
			if len(batch) >= batchSize {
				flush()
				resetTimer()
			}
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
