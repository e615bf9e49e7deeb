package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Backfill  BackfillConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	TopicMeasurements string
	NumPartitions     int
}

type HTTPConfig struct {
	Port        int
	BearerToken string
}

// ListenAddr returns the host:port string for the HTTP server.
func (h HTTPConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type SchedulerConfig struct {
	PollInterval   time.Duration
	TickInterval   time.Duration
	PriceInterval  time.Duration
	RollupInterval time.Duration
	RollupAt       string // HH:MM (UTC) of the first daily rollup
	TickOnStart    bool
}

// BackfillConfig holds the defaults applied to backfills dispatched on zone creation
type BackfillConfig struct {
	Days          int
	IntervalHours int
	BatchSize     int
	Workers       int
	QueueSize     int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "carbonuser"),
			Password: getEnv("DB_PASSWORD", "carbonpass"),
			DBName:   getEnv("DB_NAME", "carboncount"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:           getEnvAsBool("KAFKA_ENABLED", true),
			Brokers:           strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicMeasurements: getEnv("KAFKA_TOPIC_MEASUREMENTS", "carbon.measurements"),
			NumPartitions:     getEnvAsInt("KAFKA_NUM_PARTITIONS", 6),
		},
		HTTP: HTTPConfig{
			Port:        getEnvAsInt("HTTP_PORT", 8000),
			BearerToken: getEnv("API_BEARER_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			PollInterval:   getEnvAsDuration("SCHEDULER_POLL_INTERVAL", 60*time.Second),
			TickInterval:   getEnvAsDuration("SCHEDULER_TICK_INTERVAL", 12*time.Hour),
			PriceInterval:  getEnvAsDuration("SCHEDULER_PRICE_INTERVAL", time.Hour),
			RollupInterval: getEnvAsDuration("SCHEDULER_ROLLUP_INTERVAL", 24*time.Hour),
			RollupAt:       getEnv("SCHEDULER_ROLLUP_AT", "00:05"),
			TickOnStart:    getEnvAsBool("SCHEDULER_TICK_ON_START", true),
		},
		Backfill: BackfillConfig{
			Days:          getEnvAsInt("BACKFILL_DAYS", 180),
			IntervalHours: getEnvAsInt("BACKFILL_INTERVAL_HOURS", 12),
			BatchSize:     getEnvAsInt("BACKFILL_BATCH_SIZE", 100),
			Workers:       getEnvAsInt("BACKFILL_WORKERS", 2),
			QueueSize:     getEnvAsInt("BACKFILL_QUEUE_SIZE", 256),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive, got %s", c.Scheduler.PollInterval))
	}
	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_TICK_INTERVAL must be positive, got %s", c.Scheduler.TickInterval))
	}
	if c.Scheduler.PriceInterval <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_PRICE_INTERVAL must be positive, got %s", c.Scheduler.PriceInterval))
	}
	if c.Scheduler.RollupInterval <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_ROLLUP_INTERVAL must be positive, got %s", c.Scheduler.RollupInterval))
	}
	var hour, minute int
	if _, err := fmt.Sscanf(c.Scheduler.RollupAt, "%d:%d", &hour, &minute); err != nil || hour > 23 || minute > 59 || hour < 0 || minute < 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_ROLLUP_AT must be HH:MM, got %q", c.Scheduler.RollupAt))
	}
	if c.Backfill.Days <= 0 {
		errs = append(errs, fmt.Errorf("BACKFILL_DAYS must be positive, got %d", c.Backfill.Days))
	}
	if c.Backfill.IntervalHours <= 0 {
		errs = append(errs, fmt.Errorf("BACKFILL_INTERVAL_HOURS must be positive, got %d", c.Backfill.IntervalHours))
	}
	if c.Backfill.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BACKFILL_BATCH_SIZE must be positive, got %d", c.Backfill.BatchSize))
	}
	if c.Backfill.Workers <= 0 {
		errs = append(errs, fmt.Errorf("BACKFILL_WORKERS must be positive, got %d", c.Backfill.Workers))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
