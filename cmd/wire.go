package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/config"
	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/geofence"
	"github.com/example/mealbook/internal/lifecycle"
	"github.com/example/mealbook/internal/logger"
	"github.com/example/mealbook/internal/migrate"
	"github.com/example/mealbook/internal/notify"
	"github.com/example/mealbook/internal/presence"
	"github.com/example/mealbook/internal/scheduler"
	"github.com/example/mealbook/internal/store"
	"github.com/example/mealbook/internal/store/memory"
	"github.com/example/mealbook/internal/store/postgres"
)

const (
	jobGeofence   = "geofence"
	jobMissed     = "missed-booking"
	jobReminder   = "reminder"
	jobInactivity = "inactivity"
	jobDispatch   = "dispatch"
)

type stores struct {
	users         store.UserStore
	bookings      store.BookingStore
	locations     store.LocationStore
	notifications store.NotificationStore
	cutoffs       store.CutoffConfigStore
}

type app struct {
	cfg   config.Config
	log   *zap.Logger
	clock clock.Clock
	stores

	lifecycle  *lifecycle.Manager
	presence   *presence.Service
	reconciler *geofence.Reconciler
	notifier   *notify.Scheduler
	dispatcher *notify.Dispatcher
	jobs       *scheduler.Scheduler

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// requirePersistentStore rejects STORE=memory for commands that exit right
// after their change; an in-memory store would discard it.
func requirePersistentStore(cfg config.Config) error {
	if cfg.Store == "memory" {
		return fmt.Errorf("STORE=memory keeps data only inside a running server; this command needs STORE=postgres")
	}
	return nil
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, migrateUp bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, clock: clock.System{Location: loc}}

	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		a.stores = stores{
			users:         memory.NewUserStore(),
			bookings:      memory.NewBookingStore(),
			locations:     memory.NewLocationStore(),
			notifications: memory.NewNotificationStore(),
			cutoffs:       memory.NewCutoffStore(),
		}
	default:
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		if err := d.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if migrateUp {
			applied, err := migrate.Up(ctx, d)
			if err != nil {
				a.Close()
				return nil, err
			}
			if len(applied) > 0 {
				log.Info("migrations applied", zap.Strings("versions", applied))
			}
		}
		a.stores = stores{
			users:         postgres.NewUserStore(d),
			bookings:      postgres.NewBookingStore(d),
			locations:     postgres.NewLocationStore(d),
			notifications: postgres.NewNotificationStore(d),
			cutoffs:       postgres.NewCutoffStore(d),
		}
	}

	push, email, err := channels(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	fence := cfg.Fence()

	a.lifecycle = &lifecycle.Manager{
		Bookings: a.bookings, Users: a.users, Cutoffs: a.cutoffs,
		Fence: fence, Clock: a.clock, Email: email, Push: push,
		Log: log.Named("lifecycle"),
	}
	a.presence = &presence.Service{
		Locations: a.locations, Bookings: a.bookings,
		Fence: fence, Clock: a.clock, Log: log.Named("presence"),
	}
	a.reconciler = &geofence.Reconciler{
		Bookings: a.bookings, Locations: a.locations, Users: a.users, Notifications: a.notifications,
		Fence: fence, Clock: a.clock, Push: push, Log: log.Named("geofence"),
	}
	a.notifier = &notify.Scheduler{
		Users: a.users, Bookings: a.bookings, Notifications: a.notifications, Cutoffs: a.cutoffs,
		Clock: a.clock, Push: push, Log: log.Named("notify"),
	}
	a.dispatcher = &notify.Dispatcher{
		Notifications: a.notifications, Users: a.users, Email: email,
		Clock: a.clock, BatchSize: cfg.DispatchBatchSize, Log: log.Named("dispatch"),
	}

	remH, remM, _ := config.ParseClock(cfg.ReminderAt)
	inaH, inaM, _ := config.ParseClock(cfg.InactivityAt)
	a.jobs = &scheduler.Scheduler{
		Clock: a.clock,
		Log:   log.Named("scheduler"),
		Jobs: []scheduler.Job{
			{Name: jobGeofence, Schedule: scheduler.Every(cfg.GeofenceInterval), RunAtStart: true, Run: a.reconciler.Run},
			{Name: jobMissed, Schedule: scheduler.Every(cfg.MissedCheckInterval), RunAtStart: true, Run: a.notifier.RunMissedBookingCheck},
			{Name: jobReminder, Schedule: scheduler.DailyAt{Hour: remH, Minute: remM}, Run: a.notifier.RunReminderCheck},
			{Name: jobInactivity, Schedule: scheduler.DailyAt{Hour: inaH, Minute: inaM}, Run: a.notifier.RunInactivityCheck},
			{Name: jobDispatch, Schedule: scheduler.Every(cfg.DispatchInterval), RunAtStart: true, Run: a.dispatcher.RunDispatch},
		},
	}
	return a, nil
}

func channels(cfg config.Config, log *zap.Logger) (channel.PushChannel, channel.EmailChannel, error) {
	fallback := channel.Log{Logger: log.Named("channel")}
	var push channel.PushChannel = fallback
	var email channel.EmailChannel = fallback

	if cfg.TelegramBotToken != "" {
		tg, err := channel.NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			return nil, nil, err
		}
		push = tg
	}
	if cfg.SMTPHost != "" {
		email = channel.NewSMTP(channel.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return push, email, nil
}
