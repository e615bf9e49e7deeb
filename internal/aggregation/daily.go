package aggregation

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Execer runs a statement without returning rows
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DailyRollup summarizes each zone's measurements per UTC day
type DailyRollup struct {
	db  Execer
	now func() time.Time
}

// NewDailyRollup creates a new daily rollup
func NewDailyRollup(db Execer) *DailyRollup {
	return &DailyRollup{db: db, now: time.Now}
}

const rollupQuery = `
	INSERT INTO zone_daily_summary (
		zone_id, date,
		avg_ndvi, min_ndvi, max_ndvi,
		total_carbon, sample_count
	)
	SELECT
		zone_id,
		($1::timestamptz AT TIME ZONE 'UTC')::date AS date,
		AVG(ndvi) AS avg_ndvi,
		MIN(ndvi) AS min_ndvi,
		MAX(ndvi) AS max_ndvi,
		SUM(carbon_absorption) AS total_carbon,
		COUNT(*) AS sample_count
	FROM
		zone_measurements
	WHERE
		timestamp >= $1 AND timestamp < $2
	GROUP BY
		zone_id
	ON CONFLICT (zone_id, date) DO UPDATE
	SET
		avg_ndvi = EXCLUDED.avg_ndvi,
		min_ndvi = EXCLUDED.min_ndvi,
		max_ndvi = EXCLUDED.max_ndvi,
		total_carbon = EXCLUDED.total_carbon,
		sample_count = EXCLUDED.sample_count,
		created_at = NOW()
`

// Aggregate rolls up the UTC day containing day and returns the number
// of zones summarized
func (d *DailyRollup) Aggregate(ctx context.Context, day time.Time) (int64, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	result, err := d.db.ExecContext(ctx, rollupQuery, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate %s: %w", start.Format("2006-01-02"), err)
	}

	zones, _ := result.RowsAffected()
	log.Printf("rollup: %s summarized for %d zones", start.Format("2006-01-02"), zones)
	return zones, nil
}

// AggregatePreviousDay rolls up the previous full UTC day
func (d *DailyRollup) AggregatePreviousDay(ctx context.Context) (int64, error) {
	return d.Aggregate(ctx, d.now().UTC().AddDate(0, 0, -1))
}

// AggregateRecent rolls up the last days full UTC days, oldest first.
// It stops at the first failing day.
func (d *DailyRollup) AggregateRecent(ctx context.Context, days int) (int64, error) {
	today := d.now().UTC().Truncate(24 * time.Hour)

	var total int64
	for i := days; i >= 1; i-- {
		n, err := d.Aggregate(ctx, today.AddDate(0, 0, -i))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// NextRunTime returns the next UTC time of day (format "HH:MM") at or
// after now
func NextRunTime(now time.Time, timeOfDay string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day: %s", timeOfDay)
	}

	now = now.UTC()
	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if now.After(todayRun) {
		return todayRun.AddDate(0, 0, 1), nil
	}
	return todayRun, nil
}
