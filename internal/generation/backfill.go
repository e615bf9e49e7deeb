package generation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/metrics"
	"github.com/smukkama/carbon-monitor/internal/synth"
)

// Request describes a historical backfill
type Request struct {
	Days          int
	IntervalHours int
	Force         bool
}

// DefaultRequest is the backfill run for a newly created zone
var DefaultRequest = Request{Days: 180, IntervalHours: 12}

// Result reports what a backfill did
type Result struct {
	ZoneID    int64
	Generated int
	Deleted   int64
	Skipped   bool
	Duration  time.Duration
}

// Options configures the optional collaborators of the generators
type Options struct {
	BatchSize int
	Publisher Publisher        // nil disables publishing
	Metrics   *metrics.Metrics // nil disables metrics
	Now       func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Backfiller generates a zone's measurement history
type Backfiller struct {
	zones ZoneSource
	store MeasurementStore
	synth *synth.Synthesizer
	opts  Options
}

// NewBackfiller creates a backfiller writing through store
func NewBackfiller(zones ZoneSource, store MeasurementStore, s *synth.Synthesizer, opts Options) *Backfiller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Backfiller{zones: zones, store: store, synth: s, opts: opts}
}

// Backfill looks the zone up and backfills it. A missing zone returns
// database.ErrZoneNotFound.
func (b *Backfiller) Backfill(ctx context.Context, zoneID int64, req Request) (Result, error) {
	zone, err := b.zones.GetZone(ctx, zoneID)
	if err != nil {
		return Result{ZoneID: zoneID}, err
	}
	return b.BackfillZone(ctx, zone, req)
}

// BackfillZone writes measurements for the zone over the last req.Days
// days, one every req.IntervalHours. A zone that already has data is
// skipped unless req.Force is set, in which case its history is deleted
// first. Generated counts the measurements committed, which on a store
// failure is the number flushed before the failing batch.
func (b *Backfiller) BackfillZone(ctx context.Context, zone *database.Zone, req Request) (Result, error) {
	started := time.Now()
	res := Result{ZoneID: zone.ID}

	if zone.Area <= 0 {
		return res, ErrInvalidZone
	}
	if req.Days <= 0 || req.IntervalHours <= 0 {
		return res, ErrInvalidRequest
	}

	existing, err := b.store.CountMeasurements(ctx, zone.ID)
	if err != nil {
		b.opts.Metrics.RecordBackfill("error", time.Since(started))
		return res, &StoreError{Op: "count", ZoneID: zone.ID, Err: err}
	}

	if existing > 0 {
		if !req.Force {
			log.Printf("backfill: zone %d already has %d measurements, skipping", zone.ID, existing)
			res.Skipped = true
			res.Duration = time.Since(started)
			b.opts.Metrics.RecordBackfill("skipped", res.Duration)
			return res, nil
		}

		deleted, err := b.store.DeleteMeasurements(ctx, zone.ID)
		if err != nil {
			b.opts.Metrics.RecordBackfill("error", time.Since(started))
			return res, &StoreError{Op: "delete", ZoneID: zone.ID, Err: err}
		}
		res.Deleted = deleted
		log.Printf("backfill: removed %d measurements of zone %d", deleted, zone.ID)
	}

	grid := Grid(b.opts.now(), req.Days, req.IntervalHours)
	attrs := zoneAttributes(zone)
	if len(grid) > 0 {
		attrs.Established = grid[0]
	}
	series := b.synth.NewSeries(attrs, nil)
	log.Printf("backfill: zone %d (%s) classified as %s, generating %d points",
		zone.ID, zone.Name, series.Profile().Ecosystem, len(grid))

	bw := newBatchWriter(b.opts.BatchSize, func(ctx context.Context, batch []database.Measurement) error {
		return b.flush(ctx, zone.ID, batch)
	})

	for _, ts := range grid {
		if err := ctx.Err(); err != nil {
			res.Generated = bw.Flushed()
			return res, fmt.Errorf("backfill of zone %d interrupted: %w", zone.ID, err)
		}
		if err := bw.Add(ctx, toMeasurement(zone.ID, series.Next(ts))); err != nil {
			return b.fail(res, bw, started, err)
		}
	}
	if err := bw.Flush(ctx); err != nil {
		return b.fail(res, bw, started, err)
	}

	res.Generated = bw.Flushed()
	res.Duration = time.Since(started)
	b.opts.Metrics.RecordBackfill("success", res.Duration)

	log.Printf("backfill: zone %d done, %d measurements in %v", zone.ID, res.Generated, res.Duration)
	return res, nil
}

func (b *Backfiller) flush(ctx context.Context, zoneID int64, batch []database.Measurement) error {
	if err := b.store.InsertMeasurements(ctx, batch); err != nil {
		return &StoreError{Op: "insert", ZoneID: zoneID, Err: err}
	}
	b.opts.Metrics.RecordGenerated(SourceBackfill, len(batch))
	publish(ctx, b.opts, SourceBackfill, batch)
	return nil
}

func (b *Backfiller) fail(res Result, bw *batchWriter, started time.Time, err error) (Result, error) {
	res.Generated = bw.Flushed()
	res.Duration = time.Since(started)
	b.opts.Metrics.RecordBackfill("error", res.Duration)
	log.Printf("backfill: zone %d failed after %d measurements: %v", res.ZoneID, res.Generated, err)
	return res, err
}

// publish forwards committed measurements. The store is the source of
// truth, so failures are only logged.
func publish(ctx context.Context, opts Options, source string, batch []database.Measurement) {
	if opts.Publisher == nil {
		return
	}
	if err := opts.Publisher.PublishMeasurements(ctx, source, batch); err != nil {
		opts.Metrics.RecordPublishError()
		log.Printf("%s: failed to publish %d measurements: %v", source, len(batch), err)
	}
}
