package database

import (
	"time"

	"github.com/smukkama/carbon-monitor/internal/geo"
)

// ZoneStatus is the monitoring state of a zone
type ZoneStatus string

const (
	ZoneStatusActive   ZoneStatus = "active"
	ZoneStatusInactive ZoneStatus = "inactive"
)

// Zone represents a user-defined carbon monitoring zone
type Zone struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Coordinates []geo.Point `json:"coordinates"`
	Area        float64     `json:"area"` // square meters
	Status      ZoneStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CentroidLatitude returns the approximate centroid latitude of the boundary
func (z *Zone) CentroidLatitude() *float64 {
	return geo.CentroidLatitude(z.Coordinates)
}

// Measurement is one NDVI / carbon absorption sample of a zone
type Measurement struct {
	ID               int64     `json:"id"`
	ZoneID           int64     `json:"zone_id"`
	Timestamp        time.Time `json:"timestamp"`
	NDVI             float64   `json:"ndvi"`
	CarbonAbsorption float64   `json:"carbon_absorption"` // tonnes/day
}

// ZoneStats summarizes all measurements of a zone
type ZoneStats struct {
	TotalCarbonAbsorption float64      `json:"total_carbon_absorption"`
	AverageNDVI           float64      `json:"average_ndvi"`
	MeasurementsCount     int          `json:"measurements_count"`
	LatestMeasurement     *Measurement `json:"latest_measurement,omitempty"`
}

// DailySummary represents one day of a zone's measurements rolled up
type DailySummary struct {
	ZoneID      int64     `json:"zone_id"`
	Date        time.Time `json:"date"`
	AvgNDVI     float64   `json:"avg_ndvi"`
	MinNDVI     float64   `json:"min_ndvi"`
	MaxNDVI     float64   `json:"max_ndvi"`
	TotalCarbon float64   `json:"total_carbon"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CarbonPrice is a point of the carbon credit price series
type CarbonPrice struct {
	ID        int64     `json:"id"`
	Price     float64   `json:"price"` // CNY per tonne
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
