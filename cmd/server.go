package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/mealbook/internal/auth"
	"github.com/example/mealbook/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, log, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			go func() {
				if err := a.jobs.Run(ctx); err != nil {
					log.Error("scheduler stopped", zap.Error(err))
				}
			}()

			ws := &web.Server{
				Auth:      auth.NewStore(a.users, cfg.CookieHashKey, cfg.CookieBlockKey, a.clock),
				Lifecycle: a.lifecycle,
				Presence:  a.presence,
				Jobs:      a.jobs,
				Log:       log.Named("web"),
			}
			log.Info("starting",
				zap.String("addr", cfg.ListenAddr),
				zap.String("store", cfg.Store),
				zap.String("version", Version),
			)
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
