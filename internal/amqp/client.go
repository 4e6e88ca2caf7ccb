package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrDiscard tells the consumer to drop a message instead of requeueing it.
var ErrDiscard = errors.New("discard message")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

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

// connect dials and declares the topology. The caller must not hold mu.
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
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

	// routing key is the queue name on a direct exchange
	err = c.channel.QueueBind(
		c.queueName,
		c.queueName,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishChange publishes a change message. While the circuit breaker is
// open it fails fast without touching the broker.
func (c *Client) PublishChange(ctx context.Context, msg *ChangeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish change: circuit breaker is open")
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		c.recordFailure()
		return err
	}
	channel := c.channel
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published change message",
		"user_id", msg.UserID,
		"collection", msg.Collection,
		"document_id", msg.DocumentID,
		"operation", msg.Operation,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeChanges delivers messages to handler until ctx is done or the
// channel closes. Malformed messages and ErrDiscard results are dropped;
// any other handler error requeues the message.
func (c *Client) ConsumeChanges(ctx context.Context, handler func(context.Context, *ChangeMessage) error) error {
	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	channel := c.channel
	c.mu.Unlock()

	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming change messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery the consumer loop needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, *ChangeMessage) error) {
	dispatch(ctx, delivery.Body, delivery, handler)
}

func dispatch(ctx context.Context, body []byte, ack acknowledger, handler func(context.Context, *ChangeMessage) error) {
	msg, err := ChangeMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode change message", "error", err)
		ack.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !errors.Is(err, ErrDiscard)
		slog.ErrorContext(ctx, "Failed to handle change message",
			"error", err,
			"document_id", msg.DocumentID,
			"operation", msg.Operation,
			"requeue", requeue)
		ack.Nack(false, requeue)
		return
	}

	ack.Ack(false)
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker connection drops.
func (c *Client) Run(ctx context.Context, handler func(context.Context, *ChangeMessage) error) error {
	attempt := 0
	for {
		start := time.Now()
		err := c.ConsumeChanges(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) && !strings.Contains(err.Error(), "channel closed") {
			return err
		}
		// a consumer that stayed up for a while earns a fresh backoff
		if time.Since(start) > maxBackoff {
			attempt = 0
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			"error", err, "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		attempt++

		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
