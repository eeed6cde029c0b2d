package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("queue client closed")

type Client struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) EnsureExchange(name string) error {
	return c.EnsureExchangeKind(name, "topic")
}

func (c *Client) EnsureExchangeKind(name string, kind string) error {
	if kind == "" {
		kind = "topic"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return ErrClosed
	}
	return c.ch.ExchangeDeclare(
		name,
		kind,
		true,
		false,
		false,
		false,
		nil,
	)
}

// EnsureQueue declares a durable queue bound to exchange for each routing key.
func (c *Client) EnsureQueue(name, exchange string, routingKeys ...string) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return amqp.Queue{}, ErrClosed
	}
	q, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, err
	}
	for _, key := range routingKeys {
		if err := c.ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return amqp.Queue{}, err
		}
	}
	return q, nil
}

func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return ErrClosed
	}
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

func (c *Client) Get(queue string) (amqp.Delivery, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return amqp.Delivery{}, false, ErrClosed
	}
	return c.ch.Get(queue, true)
}
