package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryJob asks downstream channels (push, email) to deliver a committed
// batch of notifications.
type DeliveryJob struct {
	Kind       string    `json:"kind"`
	RefID      string    `json:"refId,omitempty"`
	Title      string    `json:"title"`
	BatchIndex int       `json:"batchIndex"`
	UserIDs    []string  `json:"userIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DeliveryPublisher struct {
	publisher Publisher
	queueName string
	logger    *slog.Logger
}

func NewDeliveryPublisher(publisher Publisher, queueName string, logger *slog.Logger) *DeliveryPublisher {
	return &DeliveryPublisher{
		publisher: publisher,
		queueName: queueName,
		logger:    logger,
	}
}

func (d *DeliveryPublisher) Enqueue(ctx context.Context, job DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode delivery job: %w", err)
	}
	if err := d.publisher.Publish(ctx, d.queueName, body); err != nil {
		return fmt.Errorf("publish delivery job: %w", err)
	}
	d.logger.DebugContext(ctx, "delivery job enqueued", "queue", d.queueName, "kind", job.Kind, "batch", job.BatchIndex, "recipients", len(job.UserIDs))
	return nil
}

// DeliveryHandler processes one job. Returning an error requeues the delivery.
type DeliveryHandler func(ctx context.Context, job DeliveryJob) error

// ConsumeDeliveries runs handler for each delivery until ctx is done or the
// channel closes. Undecodable messages are dropped.
func ConsumeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, handler DeliveryHandler, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var job DeliveryJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				logger.WarnContext(ctx, "dropping malformed delivery job", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				logger.ErrorContext(ctx, "delivery job failed, requeueing", "kind", job.Kind, "batch", job.BatchIndex, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
