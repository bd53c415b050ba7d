package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spectraml/spectrajobs/pkg/models"
)

const (
	// DispatchExchange routes start messages to per-job-type worker queues.
	DispatchExchange = "spectrajobs.dispatch"
	// ControlExchange fans abort requests out to every worker.
	ControlExchange = "spectrajobs.control"
)

// AMQPQueue implements the Queue interface over a RabbitMQ channel.
type AMQPQueue struct {
	channel *amqp.Channel
}

// NewAMQPQueue opens a channel on conn and declares the dispatch and control
// exchanges.
func NewAMQPQueue(conn *amqp.Connection) (*AMQPQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(DispatchExchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare dispatch exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(ControlExchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare control exchange: %w", err)
	}

	return &AMQPQueue{channel: ch}, nil
}

func (q *AMQPQueue) Dispatch(ctx context.Context, jobID uuid.UUID, jobType models.JobType, dirPath string) error {
	body, err := json.Marshal(StartMessage{JobID: jobID, Type: jobType, DirPath: dirPath})
	if err != nil {
		return fmt.Errorf("marshal start message: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		DispatchExchange,
		RoutingKey(jobType),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    jobID.String(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish dispatch: %w", err)
	}
	return nil
}

func (q *AMQPQueue) Cancel(ctx context.Context, jobID uuid.UUID) error {
	body, err := json.Marshal(AbortMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal abort message: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ControlExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   jobID.String(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish abort: %w", err)
	}
	return nil
}

// Close releases the underlying channel.
func (q *AMQPQueue) Close() error {
	return q.channel.Close()
}

// RoutingKey maps a job type to its worker queue routing key.
func RoutingKey(jobType models.JobType) string {
	return strings.ToLower(string(jobType))
}
