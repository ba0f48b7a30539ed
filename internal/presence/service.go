package presence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/location"
	"github.com/example/mealbook/internal/geo"
	"github.com/example/mealbook/internal/store"
)

// Service records location updates and keeps today's availableForLunch
// flag in step with them. It never changes booking status.
type Service struct {
	Locations store.LocationStore
	Bookings  store.BookingStore
	Fence     geo.Fence
	Clock     clock.Clock
	Log       *zap.Logger
}

type Update struct {
	InsideFence       bool
	AvailableForLunch bool
}

func (s *Service) Update(ctx context.Context, userID string, lat, lon float64) (Update, error) {
	now := s.Clock.Now()
	if err := s.Locations.Upsert(ctx, location.UserLocation{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lon,
		UpdatedAt: now,
	}); err != nil {
		return Update{}, fmt.Errorf("save location: %w", err)
	}

	res := Update{InsideFence: s.Fence.Contains(lat, lon)}
	b, err := s.Bookings.FindByUserAndDate(ctx, userID, clock.DateOf(now))
	if errors.Is(err, store.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("find booking: %w", err)
	}
	if b.Status != booking.StatusBooked {
		return res, nil
	}

	res.AvailableForLunch = res.InsideFence
	if b.AvailableForLunch != res.AvailableForLunch {
		if err := s.Bookings.SetAvailableForLunch(ctx, b.ID, res.AvailableForLunch, now); err != nil {
			return res, fmt.Errorf("set available: %w", err)
		}
		if s.Log != nil {
			s.Log.Debug("lunch availability changed", zap.String("user_id", userID), zap.Bool("available", res.AvailableForLunch))
		}
	}
	return res, nil
}
