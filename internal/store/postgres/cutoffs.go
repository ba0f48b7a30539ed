package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/store"
)

type CutoffStore struct{ db *db.DB }

func NewCutoffStore(d *db.DB) *CutoffStore { return &CutoffStore{db: d} }

func (s *CutoffStore) Latest(ctx context.Context) (booking.CutoffTime, bool, error) {
	sql, args, err := build(dialect.From(tableCutoffs).Prepared(true).
		Select("cutoff_time").
		Order(goqu.C("id").Desc()).
		Limit(1))
	if err != nil {
		return booking.CutoffTime{}, false, err
	}
	var t pgtype.Time
	err = s.db.QueryRow(ctx, sql, args...).Scan(&t)
	if db.IsNotFound(err) {
		return booking.CutoffTime{}, false, nil
	}
	if err != nil {
		return booking.CutoffTime{}, false, fmt.Errorf("db: %w", err)
	}
	return cutoffFromTime(t), true, nil
}

func (s *CutoffStore) Insert(ctx context.Context, c booking.CutoffTime, at time.Time) error {
	sql, args, err := build(dialect.Insert(tableCutoffs).Prepared(true).Rows(goqu.Record{
		"cutoff_time": fmt.Sprintf("%02d:%02d:00", c.Hour, c.Minute),
		"created_at":  at,
	}))
	if err != nil {
		return err
	}
	if err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	return nil
}

func cutoffFromTime(t pgtype.Time) booking.CutoffTime {
	d := time.Duration(t.Microseconds) * time.Microsecond
	return booking.CutoffTime{Hour: int(d / time.Hour), Minute: int(d % time.Hour / time.Minute)}
}

var _ store.CutoffConfigStore = (*CutoffStore)(nil)
