// Package jobstate tracks the progress of background backfills in Redis
package jobstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the lifecycle stage of a backfill job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

const (
	keyPrefix = "backfill_state:"
	// DefaultTTL lets stale statuses expire on their own
	DefaultTTL = 7 * 24 * time.Hour
)

// ErrNotTracked is returned when a zone has no recorded backfill
var ErrNotTracked = errors.New("no backfill status for zone")

// Status is the last known state of a zone's backfill
type Status struct {
	JobID         string    `json:"job_id"`
	ZoneID        int64     `json:"zone_id"`
	State         State     `json:"state"`
	Days          int       `json:"days"`
	IntervalHours int       `json:"interval_hours"`
	Force         bool      `json:"force"`
	Count         int       `json:"count"`
	Error         string    `json:"error,omitempty"`
	QueuedAt      time.Time `json:"queued_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tracker stores one status per zone in Redis
type Tracker struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewTracker creates a tracker using the given client
func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{redis: client, ttl: DefaultTTL}
}

func key(zoneID int64) string {
	return keyPrefix + strconv.FormatInt(zoneID, 10)
}

func zoneFromKey(k string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(k, keyPrefix), 10, 64)
	if err != nil || !strings.HasPrefix(k, keyPrefix) {
		return 0, false
	}
	return id, true
}

// Get retrieves the backfill status of a zone
func (t *Tracker) Get(ctx context.Context, zoneID int64) (*Status, error) {
	data, err := t.redis.Get(ctx, key(zoneID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backfill status from Redis: %w", err)
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backfill status: %w", err)
	}
	return &st, nil
}

// Update saves the status of a zone, stamping UpdatedAt
func (t *Tracker) Update(ctx context.Context, st Status) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal backfill status: %w", err)
	}
	if err := t.redis.Set(ctx, key(st.ZoneID), data, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set backfill status in Redis: %w", err)
	}
	return nil
}

// Delete removes the status of a zone
func (t *Tracker) Delete(ctx context.Context, zoneID int64) error {
	return t.redis.Del(ctx, key(zoneID)).Err()
}

// List returns every tracked status keyed by zone id
func (t *Tracker) List(ctx context.Context) (map[int64]*Status, error) {
	statuses := make(map[int64]*Status)

	iter := t.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		zoneID, ok := zoneFromKey(iter.Val())
		if !ok {
			continue
		}
		st, err := t.Get(ctx, zoneID)
		if err != nil {
			continue
		}
		statuses[zoneID] = st
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return statuses, nil
}
