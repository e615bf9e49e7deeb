package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/model"
	"github.com/smukkama/carbon-monitor/internal/synth"
)

func backfillCmd() *cobra.Command {
	var (
		zoneID        int64
		all           bool
		days          int
		intervalHours int
		force         bool
		publish       bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Generate historical measurements for a zone",
		Long: `Generate historical measurements for one zone, or every active zone.

A zone that already has measurements is skipped unless --force is given,
in which case its history is replaced.

Examples:
  carbonctl backfill --zone 3
  carbonctl backfill --all --days 30 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (zoneID > 0) == all {
				return fmt.Errorf("exactly one of --zone or --all is required")
			}

			e, err := openEnv(publish)
			if err != nil {
				return err
			}
			defer e.Close()

			if !cmd.Flags().Changed("days") {
				days = e.cfg.Backfill.Days
			}
			if !cmd.Flags().Changed("interval-hours") {
				intervalHours = e.cfg.Backfill.IntervalHours
			}
			req := generation.Request{Days: days, IntervalHours: intervalHours, Force: force}

			ctx := cmd.Context()
			backfiller := generation.NewBackfiller(e.db, e.db, synth.NewRandom(model.Default{}), e.opts)

			if !all {
				res, err := backfiller.Backfill(ctx, zoneID, req)
				printResult(res)
				return err
			}

			zones, err := e.db.ListActiveZones(ctx)
			if err != nil {
				return fmt.Errorf("failed to list zones: %w", err)
			}
			var failed int
			for i := range zones {
				res, err := backfiller.BackfillZone(ctx, &zones[i], req)
				printResult(res)
				if err != nil {
					fmt.Printf("  error: %v\n", err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d zones failed", failed, len(zones))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&zoneID, "zone", 0, "zone id")
	cmd.Flags().BoolVar(&all, "all", false, "backfill every active zone")
	cmd.Flags().IntVar(&days, "days", generation.DefaultRequest.Days, "days of history")
	cmd.Flags().IntVar(&intervalHours, "interval-hours", generation.DefaultRequest.IntervalHours, "hours between measurements")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace existing history")
	cmd.Flags().BoolVar(&publish, "publish", true, "publish measurements to Kafka when enabled")

	return cmd
}

func printResult(res generation.Result) {
	switch {
	case res.Skipped:
		fmt.Printf("zone %d: skipped (already has data)\n", res.ZoneID)
	default:
		fmt.Printf("zone %d: %d measurements in %s (replaced %d)\n",
			res.ZoneID, res.Generated, res.Duration.Round(time.Millisecond), res.Deleted)
	}
}

func tickCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Write one live measurement for every active zone",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(publish)
			if err != nil {
				return err
			}
			defer e.Close()

			ticker := generation.NewTicker(e.db, e.db, synth.NewRandom(model.Default{}), e.opts)
			n, err := ticker.Tick(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Ticked %d zones\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", true, "publish measurements to Kafka when enabled")

	return cmd
}
