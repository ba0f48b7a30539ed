package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/store"
)

type NotificationStore struct{ db *db.DB }

func NewNotificationStore(d *db.DB) *NotificationStore { return &NotificationStore{db: d} }

func (s *NotificationStore) Save(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	rec := goqu.Record{
		"user_id":      n.UserID,
		"type":         string(n.Type),
		"message":      n.Message,
		"scheduled_at": n.ScheduledAt,
		"sent":         n.Sent,
		"sent_at":      n.SentAt,
	}
	if !n.CreatedAt.IsZero() {
		rec["created_at"] = n.CreatedAt
	}
	sql, args, err := build(dialect.Insert(tableNotifications).Prepared(true).Rows(rec).Returning("id", "created_at"))
	if err != nil {
		return n, err
	}
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&n.ID, &n.CreatedAt); err != nil {
		return n, fmt.Errorf("db: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) ExistsByUserTypeScheduledBetween(ctx context.Context, userID string, typ notification.Type, from, to time.Time) (bool, error) {
	n, err := count(ctx, s.db, dialect.From(tableNotifications).Prepared(true).Where(
		goqu.Ex{"user_id": userID, "type": string(typ)},
		goqu.C("scheduled_at").Gte(from),
		goqu.C("scheduled_at").Lte(to),
	))
	return n > 0, err
}

func (s *NotificationStore) FindUnsentDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	ds := unsentDue(now).
		Select("id", "user_id", "type", "message", "scheduled_at", "sent", "sent_at", "created_at", "attempts", "next_attempt_at")
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	sql, args, err := build(ds)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &n.ScheduledAt, &n.Sent, &n.SentAt, &n.CreatedAt, &n.Attempts, &n.NextAttemptAt); err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		n.Type = notification.Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// unsentDue selects rows that are due and out of backoff. Retried rows sort
// behind fresh ones so a run of failures cannot fill every batch.
func unsentDue(now time.Time) *goqu.SelectDataset {
	return dialect.From(tableNotifications).Prepared(true).
		Where(
			goqu.Ex{"sent": false},
			goqu.C("scheduled_at").Lte(now),
			goqu.Or(goqu.C("next_attempt_at").IsNull(), goqu.C("next_attempt_at").Lte(now)),
		).
		Order(goqu.C("attempts").Asc(), goqu.C("scheduled_at").Asc(), goqu.C("id").Asc())
}

func (s *NotificationStore) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := affected(ctx, s.db, dialect.Update(tableNotifications).Prepared(true).
		Set(goqu.Record{"sent": true, "sent_at": at}).
		Where(goqu.Ex{"id": id, "sent": false}))
	return n > 0, err
}

func (s *NotificationStore) MarkFailed(ctx context.Context, id int64, retryAt time.Time) error {
	n, err := affected(ctx, s.db, dialect.Update(tableNotifications).Prepared(true).
		Set(goqu.Record{"attempts": goqu.L("attempts + 1"), "next_attempt_at": retryAt}).
		Where(goqu.Ex{"id": id, "sent": false}))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.NotificationStore = (*NotificationStore)(nil)
