// Command carbonctl runs one-off generation and maintenance jobs against
// the carbon monitor database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/queue"
	"github.com/smukkama/carbon-monitor/pkg/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "carbonctl",
		Short:        "Operator tools for the carbon monitor",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(rollupCmd())
	rootCmd.AddCommand(watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// env is what the generation commands share
type env struct {
	cfg     *config.Config
	db      *database.DB
	opts    generation.Options
	closers []func() error
}

func openEnv(publish bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	e := &env{
		cfg:     cfg,
		db:      db,
		opts:    generation.Options{BatchSize: cfg.Backfill.BatchSize},
		closers: []func() error{db.Close},
	}

	if publish && cfg.Kafka.Enabled {
		publisher := queue.NewMeasurementPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMeasurements)
		e.opts.Publisher = publisher
		e.closers = append(e.closers, publisher.Close)
	}
	return e, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}
