package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/domain/location"
	"github.com/example/mealbook/internal/store"
)

type LocationStore struct{ db *db.DB }

func NewLocationStore(d *db.DB) *LocationStore { return &LocationStore{db: d} }

func (s *LocationStore) FindLatestByUser(ctx context.Context, userID string) (location.UserLocation, error) {
	sql, args, err := build(dialect.From(tableLocations).Prepared(true).
		Select("user_id", "latitude", "longitude", "updated_at").
		Where(goqu.Ex{"user_id": userID}))
	if err != nil {
		return location.UserLocation{}, err
	}
	var l location.UserLocation
	err = s.db.QueryRow(ctx, sql, args...).Scan(&l.UserID, &l.Latitude, &l.Longitude, &l.UpdatedAt)
	if db.IsNotFound(err) {
		return location.UserLocation{}, store.ErrNotFound
	}
	if err != nil {
		return location.UserLocation{}, fmt.Errorf("db: %w", err)
	}
	return l, nil
}

func (s *LocationStore) Upsert(ctx context.Context, l location.UserLocation) error {
	sql, args, err := build(dialect.Insert(tableLocations).Prepared(true).Rows(goqu.Record{
		"user_id":    l.UserID,
		"latitude":   l.Latitude,
		"longitude":  l.Longitude,
		"updated_at": l.UpdatedAt,
	}).OnConflict(goqu.DoUpdate("user_id", goqu.Record{
		"latitude":   goqu.L("EXCLUDED.latitude"),
		"longitude":  goqu.L("EXCLUDED.longitude"),
		"updated_at": goqu.L("EXCLUDED.updated_at"),
	})))
	if err != nil {
		return err
	}
	if err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	return nil
}

var _ store.LocationStore = (*LocationStore)(nil)
