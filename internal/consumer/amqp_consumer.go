package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/giobyte8/levelviews/internal/models"
	"github.com/giobyte8/levelviews/internal/telemetry"
	"github.com/giobyte8/levelviews/internal/telemetry/metrics"
)

const consumerTag = "levelviews-resize"

// Holds the config params for the consumer
type AMQPConfig struct {
	AMQPUri  string
	Exchange string

	ResizeQueueName string
}

type AMQPConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    AMQPConfig
	processor DirProcessor
	telemetry *telemetry.TelemetrySvc
}

// Creates a new AMQPConsumer instance ready to connect to broker
func NewAMQPConsumer(
	config AMQPConfig,
	processor DirProcessor,
	telemetry *telemetry.TelemetrySvc,
) (*AMQPConsumer, error) {

	if config.AMQPUri == "" {
		return nil, fmt.Errorf("AMQP URI cannot be empty in config")
	}
	if config.Exchange == "" {
		return nil, fmt.Errorf("AMQP exchange cannot be empty in config")
	}
	if config.ResizeQueueName == "" {
		return nil, fmt.Errorf(
			"AMQP resize requests queue name cannot be empty in config",
		)
	}

	return &AMQPConsumer{
		config:    config,
		processor: processor,
		telemetry: telemetry,
	}, nil
}

// Connects to AMQP broker, declares exchange and queue and
// starts consuming messages
func (c *AMQPConsumer) Start(ctx context.Context) error {
	slog.Debug("AMQP - Initializing AMQP Consumer")

	var err error
	c.conn, err = amqp.Dial(c.config.AMQPUri)
	if err != nil {
		return fmt.Errorf("AMQP - Connection to broker failed: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("AMQP - Failed to open channel: %w", err)
	}

	if err := c.declareTopology(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	// Directories are resized one at a time
	if err := c.channel.Qos(1, 0, false); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("AMQP - Failed to set channel QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.config.ResizeQueueName,
		consumerTag, // Consumer tag
		false,       // Auto-acknowledge
		false,       // Exclusive
		false,       // No-local
		false,       // No-wait
		nil,         // Arguments
	)
	if err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf(
			"AMQP - Failed to create resize queue consumer: %w",
			err,
		)
	}

	go c.consume(ctx, msgs)
	return nil
}

func (c *AMQPConsumer) declareTopology() error {
	err := c.channel.ExchangeDeclare(
		c.config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("AMQP - Failed to declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.config.ResizeQueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("AMQP - Failed to declare resize queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.ResizeQueueName, // Queue
		c.config.ResizeQueueName, // Routing key
		c.config.Exchange,        // Exchange
		false,                    // No-wait
		nil,                      // Arguments
	)
	if err != nil {
		return fmt.Errorf("AMQP - Failed to bind resize queue: %w", err)
	}

	return nil
}

// Gracefully stops the AMQP consumer
func (c *AMQPConsumer) Stop() {
	slog.Info("AMQP - Stopping AMQP Consumer...")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Error("AMQP - Failed to close channel", "error", err)
		} else {
			slog.Debug("AMQP - Channel closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Error("AMQP - Failed to close connection", "error", err)
		} else {
			slog.Debug("AMQP - Connection closed")
		}
	}

	slog.Info("AMQP - AMQP Consumer stopped")
}

func (c *AMQPConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				slog.Info(
					"AMQP - Resize message channel closed. goroutine exiting",
				)
				return
			}

			c.handleDelivery(ctx, msg)

		case <-ctx.Done():
			slog.Info(
				"AMQP - Context done signal received, " +
					"stopping resize consumption goroutine...",
			)
			return
		}
	}
}

// Processes a single delivery and acks it on success. Malformed
// and failed requests are dropped, they are never requeued.
func (c *AMQPConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var req models.ResizeRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		slog.Error(
			"AMQP - Failed to unmarshal resize message",
			"error", err,
			"message", string(msg.Body),
		)
		nack(msg)
		return
	}

	c.telemetry.Metrics().Increment(
		metrics.ResizeRequestReceived,
		map[string]string{"inputDir": req.InputDir},
	)

	if err := c.processor.ProcessDir(ctx, req); err != nil {
		slog.Error(
			"AMQP - Failed to process resize request",
			"error", err,
			"requestId", req.RequestID,
			"inputDir", req.InputDir,
		)
		nack(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("AMQP - Failed to acknowledge resize message", "error", err)
	}
}

func nack(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		slog.Error("AMQP - Failed to nack resize message", "error", err)
	}
}
