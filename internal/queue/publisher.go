package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/protocol"
)

// messageWriter is the part of kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MeasurementPublisher turns committed measurements into Kafka events
// keyed by zone id, so one zone's events stay ordered on one partition
type MeasurementPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewMeasurementPublisher creates a publisher for the measurement topic
func NewMeasurementPublisher(brokers []string, topic string) *MeasurementPublisher {
	return newMeasurementPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // partition by zone id
		RequiredAcks: kafka.RequireOne,
	})
}

func newMeasurementPublisher(w messageWriter) *MeasurementPublisher {
	return &MeasurementPublisher{writer: w, now: time.Now}
}

// PublishMeasurements publishes one event per measurement in a single write
func (mp *MeasurementPublisher) PublishMeasurements(ctx context.Context, source string, measurements []database.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	publishedAt := mp.now().UTC()
	messages := make([]kafka.Message, 0, len(measurements))
	for _, m := range measurements {
		value, err := protocol.EncodeMeasurementEvent(&protocol.MeasurementEvent{
			ZoneID:           m.ZoneID,
			Source:           source,
			Timestamp:        m.Timestamp,
			NDVI:             m.NDVI,
			CarbonAbsorption: m.CarbonAbsorption,
			PublishedAt:      publishedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to encode event for zone %d: %w", m.ZoneID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(strconv.FormatInt(m.ZoneID, 10)),
			Value: value,
		})
	}

	if err := mp.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish %d %s events: %w", len(messages), source, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (mp *MeasurementPublisher) Close() error {
	return mp.writer.Close()
}
