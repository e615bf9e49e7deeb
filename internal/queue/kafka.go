// Package queue carries measurement events over Kafka
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/carbon-monitor/internal/protocol"
)

// messageReader is the part of kafka.Reader the consumer needs
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MeasurementConsumer reads measurement events from a consumer group.
// Offsets are committed once an event has been decoded, so each event is
// handed out at most once.
type MeasurementConsumer struct {
	reader messageReader
}

// NewMeasurementConsumer joins groupID on the measurement topic, starting
// at the newest offset when the group has none
func NewMeasurementConsumer(brokers []string, topic, groupID string) *MeasurementConsumer {
	return &MeasurementConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			CommitInterval: 0,    // Manual commit
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// EventError reports a message that is not a valid measurement event.
// The message is committed, so the consumer can move past it.
type EventError struct {
	Partition int
	Offset    int64
	Err       error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("bad measurement event at %d/%d: %v", e.Partition, e.Offset, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// Next returns the next measurement event. Undecodable messages yield an
// *EventError; any other error means the consumer cannot go on.
func (c *MeasurementConsumer) Next(ctx context.Context) (*protocol.MeasurementEvent, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}

	ev, decodeErr := protocol.DecodeMeasurementEvent(msg.Value)
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}
	if decodeErr != nil {
		return nil, &EventError{Partition: msg.Partition, Offset: msg.Offset, Err: decodeErr}
	}
	return ev, nil
}

// Close leaves the consumer group
func (c *MeasurementConsumer) Close() error {
	return c.reader.Close()
}

// CreateTopic creates the measurement topic with numPartitions
// partitions. An existing topic is left as is.
func CreateTopic(brokers []string, topic string, numPartitions int, replicationFactor int) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	log.Printf("queue: created topic %s with %d partitions", topic, numPartitions)
	return nil
}
