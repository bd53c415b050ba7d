package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spectraml/spectrajobs/pkg/models"
)

// StartHandler executes one dispatched job. Returning an error nacks the
// delivery for redelivery.
type StartHandler func(ctx context.Context, msg StartMessage) error

// Consumer receives dispatched start messages for a single job type.
type Consumer struct {
	channel   *amqp.Channel
	queueName string
}

// NewConsumer opens a channel on conn, declares the worker queue for jobType,
// and binds it to the dispatch exchange.
func NewConsumer(conn *amqp.Connection, jobType models.JobType) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(DispatchExchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare dispatch exchange: %w", err)
	}

	queueName := "spectrajobs." + RoutingKey(jobType)
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, RoutingKey(jobType), DispatchExchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{channel: ch, queueName: queueName}, nil
}

// Start consumes start messages until ctx is cancelled or the channel closes.
// Each delivery is acked on success and nacked with requeue on failure.
func (c *Consumer) Start(ctx context.Context, handle StartHandler) error {
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var msg StartMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				slog.Error("malformed start message", "error", err)
				d.Nack(false, false)
				continue
			}

			if err := handle(ctx, msg); err != nil {
				slog.Error("job execution failed", "job_id", msg.JobID, "error", err)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close releases the underlying channel.
func (c *Consumer) Close() error {
	return c.channel.Close()
}
