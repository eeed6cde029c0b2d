package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultEventsExchange = "momo.events"

// Publisher sends storefront and admin events to a single topic exchange, using the event
// type as routing key.
type Publisher struct {
	client   *Client
	exchange string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewPublisher(client *Client, exchange string, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultEventsExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := client.EnsureExchange(exchange); err != nil {
		return nil, err
	}
	return &Publisher{client: client, exchange: exchange, timeout: 5 * time.Second, logger: logger}, nil
}

func (p *Publisher) Exchange() string {
	return p.exchange
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.client.PublishJSON(ctx, p.exchange, routingKey, event); err != nil {
		return err
	}
	p.logger.Debug("event published", zap.String("exchange", p.exchange), zap.String("routingKey", routingKey))
	return nil
}
