package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/smukkama/carbon-monitor/internal/queue"
	"github.com/smukkama/carbon-monitor/pkg/config"
)

func watchCmd() *cobra.Command {
	var (
		groupID string
		zoneID  int64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print measurement events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Kafka.Enabled {
				return errors.New("kafka is disabled (KAFKA_ENABLED=false)")
			}

			consumer := queue.NewMeasurementConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicMeasurements, groupID)
			defer consumer.Close()

			ctx := cmd.Context()
			fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.Kafka.TopicMeasurements)
			for {
				ev, err := consumer.Next(ctx)
				var evErr *queue.EventError
				switch {
				case errors.As(err, &evErr):
					log.Printf("watch: skipping %v", evErr)
					continue
				case err != nil:
					if ctx.Err() != nil {
						return nil
					}
					return err
				}

				if zoneID == 0 || ev.ZoneID == zoneID {
					fmt.Printf("%s  zone=%-5d %-8s ndvi=%.4f carbon=%.6f t/day\n",
						ev.Timestamp.Format("2006-01-02 15:04"), ev.ZoneID, ev.Source, ev.NDVI, ev.CarbonAbsorption)
				}
			}
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "carbonctl-watch", "consumer group id")
	cmd.Flags().Int64Var(&zoneID, "zone", 0, "only print events of this zone")

	return cmd
}
