// Package protocol defines the messages exchanged over Kafka
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MeasurementEvent announces a measurement committed to the store
type MeasurementEvent struct {
	ZoneID           int64     `json:"zone_id"`
	Source           string    `json:"source"` // backfill, tick
	Timestamp        time.Time `json:"timestamp"`
	NDVI             float64   `json:"ndvi"`
	CarbonAbsorption float64   `json:"carbon_absorption"`
	PublishedAt      time.Time `json:"published_at"`
}

// EncodeMeasurementEvent encodes a MeasurementEvent to JSON
func EncodeMeasurementEvent(ev *MeasurementEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeMeasurementEvent decodes JSON to MeasurementEvent
func DecodeMeasurementEvent(data []byte) (*MeasurementEvent, error) {
	var ev MeasurementEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.ZoneID <= 0 {
		return nil, fmt.Errorf("measurement event without zone id")
	}
	return &ev, nil
}
