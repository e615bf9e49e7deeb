package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 12*time.Hour, cfg.Scheduler.TickInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.PriceInterval)
	assert.Equal(t, 180, cfg.Backfill.Days)
	assert.Equal(t, 12, cfg.Backfill.IntervalHours)
	assert.Equal(t, 100, cfg.Backfill.BatchSize)
	assert.Equal(t, ":8000", cfg.HTTP.ListenAddr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_INTERVAL", "6h")
	t.Setenv("BACKFILL_WORKERS", "4")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6*time.Hour, cfg.Scheduler.TickInterval)
	assert.Equal(t, 4, cfg.Backfill.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("BACKFILL_BATCH_SIZE", "0")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKFILL_BATCH_SIZE")
	assert.Contains(t, err.Error(), "SCHEDULER_POLL_INTERVAL")
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "carbon", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=carbon sslmode=disable", d.ConnectionString())
}

func TestLoad_RollupAt(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "00:05", cfg.Scheduler.RollupAt)

	t.Setenv("SCHEDULER_ROLLUP_AT", "25:00")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_ROLLUP_AT")
}
