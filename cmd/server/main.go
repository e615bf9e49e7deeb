package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/carbon-monitor/internal/aggregation"
	"github.com/smukkama/carbon-monitor/internal/api"
	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/dispatch"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/jobstate"
	"github.com/smukkama/carbon-monitor/internal/metrics"
	"github.com/smukkama/carbon-monitor/internal/model"
	"github.com/smukkama/carbon-monitor/internal/pricing"
	"github.com/smukkama/carbon-monitor/internal/queue"
	"github.com/smukkama/carbon-monitor/internal/scheduler"
	"github.com/smukkama/carbon-monitor/internal/synth"
	"github.com/smukkama/carbon-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Carbon Monitor...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The API gets its own pool so request traffic never waits behind
	// backfill flushes and scheduled jobs.
	apiDB, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer apiDB.Close()

	workDB, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer workDB.Close()
	fmt.Println("Connected to database")

	if err := apiDB.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	m, err := metrics.New()
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Backfill status tracking (optional)
	var (
		tracker dispatch.Tracker
		status  api.StatusReader
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			fmt.Printf("Note: Redis unavailable, backfill tracking disabled: %v\n", err)
		} else {
			t := jobstate.NewTracker(client)
			tracker, status = t, t
			fmt.Println("Backfill tracking enabled (Redis)")
		}
	}

	// Measurement events (optional)
	opts := generation.Options{BatchSize: cfg.Backfill.BatchSize, Metrics: m}
	if cfg.Kafka.Enabled {
		if err := queue.CreateTopic(
			cfg.Kafka.Brokers,
			cfg.Kafka.TopicMeasurements,
			cfg.Kafka.NumPartitions,
			1, // replication factor
		); err != nil {
			fmt.Printf("Note: Topic creation failed: %v\n", err)
		}

		publisher := queue.NewMeasurementPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMeasurements)
		defer publisher.Close()
		opts.Publisher = publisher
		fmt.Printf("Publishing measurements to %s\n", cfg.Kafka.TopicMeasurements)
	}

	backfiller := generation.NewBackfiller(workDB, workDB, synth.NewRandom(model.Default{}), opts)
	ticker := generation.NewTicker(workDB, workDB, synth.NewRandom(model.Default{}), opts)

	dispatcher := dispatch.New(backfiller, tracker, m, cfg.Backfill.Workers, cfg.Backfill.QueueSize)
	dispatcher.Start()

	prices := pricing.NewService(workDB)
	if n, err := prices.SeedHistory(ctx, 30); err != nil {
		fmt.Printf("Note: Price history seeding failed: %v\n", err)
	} else if n > 0 {
		fmt.Printf("Seeded %d historical prices\n", n)
	}

	rollup := aggregation.NewDailyRollup(workDB)
	rollupAt, err := aggregation.NextRunTime(time.Now(), cfg.Scheduler.RollupAt)
	if err != nil {
		log.Fatalf("Invalid rollup time: %v", err)
	}

	sched := scheduler.New(cfg.Scheduler.PollInterval, m)
	jobs := []scheduler.Job{
		{
			Name:       "live-tick",
			Interval:   cfg.Scheduler.TickInterval,
			RunOnStart: cfg.Scheduler.TickOnStart,
			Run: func(ctx context.Context) error {
				_, err := ticker.Tick(ctx)
				return err
			},
		},
		{
			Name:     "carbon-price",
			Interval: cfg.Scheduler.PriceInterval,
			Run:      prices.Job,
		},
		{
			Name:     "daily-rollup",
			Interval: cfg.Scheduler.RollupInterval,
			StartAt:  rollupAt,
			Run: func(ctx context.Context) error {
				_, err := rollup.AggregatePreviousDay(ctx)
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := sched.Schedule(job); err != nil {
			log.Fatalf("Failed to schedule %s: %v", job.Name, err)
		}
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	fmt.Printf("Scheduler started (tick every %s, next rollup %s)\n",
		cfg.Scheduler.TickInterval, rollupAt.Format(time.RFC3339))

	server := api.New(cfg.HTTP, api.Deps{
		Store:      apiDB,
		Dispatcher: dispatcher,
		Prices:     pricing.NewService(apiDB),
		Status:     status,
		Metrics:    m,
		Backfill: generation.Request{
			Days:          cfg.Backfill.Days,
			IntervalHours: cfg.Backfill.IntervalHours,
		},
	})

	fmt.Println("\n✓ Carbon Monitor is running")
	fmt.Printf("✓ HTTP API listening on %s\n", cfg.HTTP.ListenAddr())
	fmt.Println("✓ Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		log.Printf("HTTP server stopped: %v", err)
	}

	fmt.Println("\nShutting down gracefully...")
	sched.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dispatcher.Stop(drainCtx); err != nil {
		log.Printf("Dispatcher did not drain: %v", err)
	}
}
