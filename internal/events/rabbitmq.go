// Package events announces record changes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stashlink/backend/internal/models"
)

const (
	ActionCreated  = "asset.created"
	ActionReviewed = "asset.reviewed"
)

// Publisher sends asset events. Failures are reported but never undo a stored change.
type Publisher interface {
	Publish(ctx context.Context, action string, asset models.SavedAsset) error
	Close() error
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// AssetMessage is the JSON body of every event.
type AssetMessage struct {
	Action    string            `json:"action"`
	Asset     models.SavedAsset `json:"asset"`
	Timestamp time.Time         `json:"timestamp"`
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQ, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, action string, asset models.SavedAsset) error {
	body, err := json.Marshal(AssetMessage{
		Action:    action,
		Asset:     asset,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published asset event", "asset_id", asset.ID, "action", action)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, models.SavedAsset) error { return nil }

func (Nop) Close() error { return nil }
