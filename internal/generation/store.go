// Package generation writes synthetic measurements for zones: the
// one-off historical backfill and the periodic live tick.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/synth"
)

// MeasurementStore is the part of the database the generators write to
type MeasurementStore interface {
	CountMeasurements(ctx context.Context, zoneID int64) (int, error)
	LatestMeasurement(ctx context.Context, zoneID int64) (*database.Measurement, error)
	EarliestMeasurement(ctx context.Context, zoneID int64) (*database.Measurement, error)
	DeleteMeasurements(ctx context.Context, zoneID int64) (int64, error)
	InsertMeasurements(ctx context.Context, measurements []database.Measurement) error
	InsertMeasurement(ctx context.Context, m *database.Measurement) error
}

// ZoneSource looks zones up
type ZoneSource interface {
	GetZone(ctx context.Context, id int64) (*database.Zone, error)
	ListActiveZones(ctx context.Context) ([]database.Zone, error)
}

// Publisher forwards committed measurements downstream
type Publisher interface {
	PublishMeasurements(ctx context.Context, source string, measurements []database.Measurement) error
}

// Sources of generated measurements
const (
	SourceBackfill = "backfill"
	SourceTick     = "tick"
)

var (
	ErrInvalidZone    = errors.New("zone area must be positive")
	ErrInvalidRequest = errors.New("days and interval must be positive")
)

// StoreError wraps a failed store operation of a zone
type StoreError struct {
	Op     string
	ZoneID int64
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s for zone %d: %v", e.Op, e.ZoneID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func zoneAttributes(z *database.Zone) synth.Zone {
	return synth.Zone{
		Name:      z.Name,
		AreaM2:    z.Area,
		Latitude:  z.CentroidLatitude(),
		CreatedAt: z.CreatedAt,
	}
}

func toMeasurement(zoneID int64, r synth.Reading) database.Measurement {
	return database.Measurement{
		ZoneID:           zoneID,
		Timestamp:        r.Timestamp,
		NDVI:             r.NDVI,
		CarbonAbsorption: r.CarbonAbsorption,
	}
}
