package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/lifecycle"
)

func newCutoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cutoff",
		Short: "Show or change the daily booking cutoff",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cutoff currently in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				c, err := a.lifecycle.Cutoff(ctx)
				if errors.Is(err, lifecycle.ErrConfigMissing) {
					fmt.Fprintln(cmd.OutOrStdout(), "no cutoff configured")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set HH:MM",
		Short: "Record a new cutoff; the latest one applies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := booking.ParseCutoff(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.lifecycle.SetCutoff(ctx, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cutoff set to %s\n", c)
				return nil
			})
		},
	})
	return cmd
}

// withApp runs a one-shot command against the configured database.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
