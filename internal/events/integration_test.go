//go:build integration

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stashlink/backend/internal/models"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "stash-" + name,
		RoutingKey: "assets-" + name,
		QueueName:  "stash-assets-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublishCreated() {
	cfg := s.config("created")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	asset := models.SavedAsset{
		ID:         "a-1",
		URL:        "https://github.com/golang/go",
		Title:      "golang/go",
		SourceApp:  "GitHub",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Tags:       []string{"Code"},
		CoverEmoji: "💡",
		CoverColor: "bg-green-100",
	}
	s.NoError(pub.Publish(s.ctx, ActionCreated, asset))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received AssetMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(ActionCreated, received.Action)
	s.Equal("a-1", received.Asset.ID)
	s.Equal("GitHub", received.Asset.SourceApp)
	s.Equal([]string{"Code"}, received.Asset.Tags)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublishReviewed() {
	cfg := s.config("reviewed")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	s.NoError(pub.Publish(s.ctx, ActionReviewed, models.SavedAsset{ID: "a-2", Reviewed: true}))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received AssetMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(ActionReviewed, received.Action)
	s.True(received.Asset.Reviewed)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("timeout waiting for message")
		return nil
	}
}
