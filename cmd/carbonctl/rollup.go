package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/carbon-monitor/internal/aggregation"
)

func rollupCmd() *cobra.Command {
	var (
		days int
		date string
	)

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Rebuild daily zone summaries",
		Long: `Rebuild zone_daily_summary rows from the stored measurements.

Examples:
  carbonctl rollup --days 30
  carbonctl rollup --date 2024-06-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return err
			}
			defer e.Close()

			rollup := aggregation.NewDailyRollup(e.db)

			if date != "" {
				day, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				n, err := rollup.Aggregate(cmd.Context(), day)
				if err != nil {
					return err
				}
				fmt.Printf("Summarized %d zones for %s\n", n, date)
				return nil
			}

			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			n, err := rollup.AggregateRecent(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d zone-day summaries over the last %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 1, "number of full days before today")
	cmd.Flags().StringVar(&date, "date", "", "single UTC day to summarize (YYYY-MM-DD)")

	return cmd
}
