package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// StreamWriter is the part of kafka.Writer the forwarder needs.
type StreamWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StreamReader is the part of kafka.Reader the consumer needs.
type StreamReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Forwarder mirrors bus events onto the event stream, keyed by uid so one
// user's events stay ordered within a partition.
type Forwarder struct {
	writer StreamWriter
	logger *slog.Logger
}

func NewForwarder(writer StreamWriter, logger *slog.Logger) *Forwarder {
	return &Forwarder{writer: writer, logger: logger}
}

// Attach subscribes the forwarder to every type in ForwardedTypes.
func (f *Forwarder) Attach(bus *EventBus) {
	for _, t := range ForwardedTypes {
		bus.Subscribe(t, f.Forward)
	}
}

func (f *Forwarder) Forward(ctx context.Context, event Event) error {
	value, err := json.Marshal(envelope(event))
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID(), err)
	}

	msg := kafka.Message{
		Key:   []byte(eventKey(event)),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.EventType())},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.ErrorContext(ctx, "event forward failed", "event_type", event.EventType(), "event_id", event.EventID(), "error", err)
		return fmt.Errorf("forward event %s: %w", event.EventID(), err)
	}
	return nil
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}

func envelope(event Event) BaseEvent {
	data, _ := event.Payload().(map[string]interface{})
	return BaseEvent{
		ID:        event.EventID(),
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Data:      data,
	}
}

func eventKey(event Event) string {
	if data, ok := event.Payload().(map[string]interface{}); ok {
		if uid, ok := data["uid"].(string); ok && uid != "" {
			return uid
		}
	}
	return event.EventID()
}

// Consume reads the event stream and replays each event synchronously on bus.
// A message is committed only after every handler succeeded; undecodable
// messages are committed and skipped.
func Consume(ctx context.Context, reader StreamReader, bus *EventBus, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WarnContext(ctx, "fetch event failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var event BaseEvent
		if err := json.Unmarshal(m.Value, &event); err != nil || event.Type == "" {
			logger.WarnContext(ctx, "skipping malformed event", "offset", m.Offset, "error", err)
			if err := reader.CommitMessages(ctx, m); err != nil {
				logger.ErrorContext(ctx, "commit failed", "offset", m.Offset, "error", err)
			}
			continue
		}

		processCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = bus.PublishSync(processCtx, event)
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "event handling failed, will be redelivered", "event_type", event.Type, "offset", m.Offset, "error", err)
			continue
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			logger.ErrorContext(ctx, "commit failed", "offset", m.Offset, "error", err)
		}
	}
}
