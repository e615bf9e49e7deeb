package generation

import (
	"context"
	"log"
	"time"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/synth"
)

// Ticker appends one measurement to every active zone per tick
type Ticker struct {
	zones ZoneSource
	store MeasurementStore
	synth *synth.Synthesizer
	opts  Options
}

// NewTicker creates a live ticker writing through store
func NewTicker(zones ZoneSource, store MeasurementStore, s *synth.Synthesizer, opts Options) *Ticker {
	return &Ticker{zones: zones, store: store, synth: s, opts: opts}
}

// Tick advances all active zones and returns the number of measurements
// written. Only a failure to list zones is returned as an error; a zone
// that fails is logged and the others still advance.
func (t *Ticker) Tick(ctx context.Context) (int, error) {
	zones, err := t.zones.ListActiveZones(ctx)
	if err != nil {
		return 0, &StoreError{Op: "list zones", Err: err}
	}
	return t.TickZones(ctx, zones), nil
}

// TickZones advances the given zones, all stamped with the same time
func (t *Ticker) TickZones(ctx context.Context, zones []database.Zone) int {
	if len(zones) == 0 {
		return 0
	}

	now := t.opts.now().UTC()
	written := 0
	for i := range zones {
		if ctx.Err() != nil {
			break
		}
		if err := t.advance(ctx, &zones[i], now); err != nil {
			t.opts.Metrics.RecordTickZone("error")
			log.Printf("ticker: zone %d (%s) skipped: %v", zones[i].ID, zones[i].Name, err)
			continue
		}
		t.opts.Metrics.RecordTickZone("success")
		written++
	}

	t.opts.Metrics.RecordGenerated(SourceTick, written)
	log.Printf("ticker: wrote %d measurements for %d zones", written, len(zones))
	return written
}

func (t *Ticker) advance(ctx context.Context, zone *database.Zone, now time.Time) error {
	if zone.Area <= 0 {
		return ErrInvalidZone
	}

	latest, err := t.store.LatestMeasurement(ctx, zone.ID)
	if err != nil {
		return &StoreError{Op: "latest", ZoneID: zone.ID, Err: err}
	}
	attrs := zoneAttributes(zone)
	var previous *float64
	if latest != nil {
		previous = &latest.NDVI

		first, err := t.store.EarliestMeasurement(ctx, zone.ID)
		if err != nil {
			return &StoreError{Op: "earliest", ZoneID: zone.ID, Err: err}
		}
		if first != nil {
			attrs.Established = first.Timestamp
		}
	}

	m := toMeasurement(zone.ID, t.synth.Synthesize(attrs, now, previous))
	if err := t.store.InsertMeasurement(ctx, &m); err != nil {
		return &StoreError{Op: "insert", ZoneID: zone.ID, Err: err}
	}

	publish(ctx, t.opts, SourceTick, []database.Measurement{m})
	return nil
}
