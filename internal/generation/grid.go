package generation

import "time"

// gridAlignment anchors backfill timestamps to 00:00 and 12:00 UTC
const gridAlignment = 12 * time.Hour

// Grid returns the backfill timestamps ending at end: the window start
// (end minus days) is aligned down to the preceding 00:00/12:00 UTC
// boundary, and points follow every intervalHours after it while they do
// not pass end. Timestamps are strictly increasing and in UTC.
func Grid(end time.Time, days, intervalHours int) []time.Time {
	if days <= 0 || intervalHours <= 0 {
		return nil
	}

	end = end.UTC()
	step := time.Duration(intervalHours) * time.Hour
	start := end.Add(-time.Duration(days) * 24 * time.Hour).Truncate(gridAlignment)

	points := make([]time.Time, 0, int(end.Sub(start)/step))
	for t := start.Add(step); !t.After(end); t = t.Add(step) {
		points = append(points, t)
	}
	return points
}
