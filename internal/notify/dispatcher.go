package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/store"
)

const (
	defaultBatchSize = 100

	retryBase = time.Minute
	retryMax  = time.Hour
)

// Dispatcher delivers due notifications by email and marks them sent. A
// failed delivery leaves the row unsent and backs it off, doubling the wait
// per attempt, so later rows are still delivered while it waits.
type Dispatcher struct {
	Notifications store.NotificationStore
	Users         store.UserStore
	Email         channel.EmailChannel
	Clock         clock.Clock
	BatchSize     int
	Log           *zap.Logger
}

func (d *Dispatcher) RunDispatch(ctx context.Context) error {
	limit := d.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}
	due, err := d.Notifications.FindUnsentDue(ctx, d.Clock.Now(), limit)
	if err != nil {
		return fmt.Errorf("load due notifications: %w", err)
	}

	var errs []error
	for _, n := range due {
		if err := d.deliver(ctx, n); err != nil {
			retryAt := d.Clock.Now().Add(retryDelay(n.Attempts + 1))
			if ferr := d.Notifications.MarkFailed(ctx, n.ID, retryAt); ferr != nil {
				err = errors.Join(err, fmt.Errorf("mark failed: %w", ferr))
			}
			d.log().Error("dispatch failed",
				zap.Int64("id", n.ID),
				zap.String("user_id", n.UserID),
				zap.Int("attempt", n.Attempts+1),
				zap.Time("retry_at", retryAt),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("notification %d: %w", n.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, n notification.Notification) error {
	u, err := d.Users.FindByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	msg := channel.Message{Subject: n.Type.Subject(), Body: n.Message}

	switch err := d.Email.Email(ctx, u, msg); {
	case errors.Is(err, channel.ErrNoAddress):
		// undeliverable; the push went out when it was scheduled
		d.log().Warn("notification dropped: no address", zap.Int64("id", n.ID), zap.String("user_id", n.UserID))
	case err != nil:
		return err
	}

	if _, err := d.Notifications.MarkSent(ctx, n.ID, d.Clock.Now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// retryDelay is the backoff after the given number of failed attempts.
func retryDelay(attempts int) time.Duration {
	delay := retryBase
	for i := 1; i < attempts && delay < retryMax; i++ {
		delay *= 2
	}
	return min(delay, retryMax)
}

func (d *Dispatcher) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}
