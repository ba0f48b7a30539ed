package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/report"
)

func newReportCmd() *cobra.Command {
	var from, to string

	c := &cobra.Command{
		Use:   "report",
		Short: "Print per-day booking counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			today := clock.Today(clock.System{Location: loc})
			start, end := today.AddDate(0, 0, -7), today
			if from != "" {
				if start, err = clock.ParseDate(from); err != nil {
					return fmt.Errorf("invalid --from (want YYYY-MM-DD): %w", err)
				}
			}
			if to != "" {
				if end, err = clock.ParseDate(to); err != nil {
					return fmt.Errorf("invalid --to (want YYYY-MM-DD): %w", err)
				}
			}
			if end.Before(start) {
				return fmt.Errorf("--to is before --from")
			}

			d, err := report.Open(cfg.DatabaseURL, cfg.TracingEnabled)
			if err != nil {
				return err
			}
			defer d.Close()

			days, err := report.Daily(context.Background(), report.NewRepository(d), start, end, cfg.TracingEnabled)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tBOOKED\tDEFAULT\tCANCELLED\tAVAILABLE")
			for _, s := range days {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
					s.Date.Format(clock.DateLayout), s.Booked, s.Defaulted, s.Cancelled, s.Available)
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD (default: a week ago)")
	c.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD (default: today)")
	return c
}

