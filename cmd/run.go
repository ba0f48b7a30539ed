package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run JOB",
		Short:     "Run one background job once and exit",
		Long:      "Runs a job immediately. Jobs: " + strings.Join([]string{jobGeofence, jobMissed, jobReminder, jobInactivity, jobDispatch}, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobGeofence, jobMissed, jobReminder, jobInactivity, jobDispatch},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.jobs.Trigger(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: done\n", args[0])
				return nil
			})
		},
	}
}
