package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/example/mealbook/internal/db"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/store"
)

var bookingCols = []any{"id", "user_id", "booking_date", "status", "booked_at", "available_for_lunch", "updated_at"}

type BookingStore struct{ db *db.DB }

func NewBookingStore(d *db.DB) *BookingStore { return &BookingStore{db: d} }

func scanBooking(r db.Row) (booking.MealBooking, error) {
	var b booking.MealBooking
	var status string
	if err := r.Scan(&b.ID, &b.UserID, &b.Date, &status, &b.BookedAt, &b.AvailableForLunch, &b.UpdatedAt); err != nil {
		return booking.MealBooking{}, err
	}
	b.Status = booking.Status(status)
	return b, nil
}

func (s *BookingStore) selectBookings() *goqu.SelectDataset {
	return dialect.From(tableBookings).Prepared(true).Select(bookingCols...)
}

func (s *BookingStore) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (booking.MealBooking, error) {
	sql, args, err := build(s.selectBookings().Where(goqu.Ex{"user_id": userID, "booking_date": date}))
	if err != nil {
		return booking.MealBooking{}, err
	}
	b, err := scanBooking(s.db.QueryRow(ctx, sql, args...))
	if db.IsNotFound(err) {
		return booking.MealBooking{}, store.ErrNotFound
	}
	if err != nil {
		return booking.MealBooking{}, fmt.Errorf("db: %w", err)
	}
	return b, nil
}

func (s *BookingStore) ExistsByUserAndDate(ctx context.Context, userID string, date time.Time) (bool, error) {
	n, err := count(ctx, s.db, dialect.From(tableBookings).Prepared(true).
		Where(goqu.Ex{"user_id": userID, "booking_date": date}))
	return n > 0, err
}

func (s *BookingStore) ExistsByUserInDateRange(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	n, err := count(ctx, s.db, dialect.From(tableBookings).Prepared(true).Where(
		goqu.Ex{"user_id": userID},
		goqu.C("booking_date").Gte(from),
		goqu.C("booking_date").Lte(to),
	))
	return n > 0, err
}

func (s *BookingStore) Save(ctx context.Context, w store.BookingWrite) (booking.MealBooking, error) {
	out, err := s.SaveAll(ctx, []store.BookingWrite{w})
	if err != nil {
		return booking.MealBooking{}, err
	}
	return out[0], nil
}

func (s *BookingStore) SaveAll(ctx context.Context, ws []store.BookingWrite) ([]booking.MealBooking, error) {
	out := make([]booking.MealBooking, 0, len(ws))
	err := s.db.InTx(ctx, func(q db.Querier) error {
		out = out[:0]
		for _, w := range ws {
			b, err := writeBooking(ctx, q, w)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeBooking(ctx context.Context, q db.Querier, w store.BookingWrite) (booking.MealBooking, error) {
	b := w.Booking
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.BookedAt
	}

	if b.ID == 0 {
		sql, args, err := build(dialect.Insert(tableBookings).Prepared(true).Rows(goqu.Record{
			"user_id":             b.UserID,
			"booking_date":        b.Date,
			"status":              string(b.Status),
			"booked_at":           b.BookedAt,
			"available_for_lunch": b.AvailableForLunch,
			"updated_at":          b.UpdatedAt,
		}).Returning("id"))
		if err != nil {
			return b, err
		}
		if err := q.QueryRow(ctx, sql, args...).Scan(&b.ID); err != nil {
			if db.IsUniqueViolation(err) {
				return b, store.ErrConflict
			}
			return b, fmt.Errorf("db: %w", err)
		}
		return b, nil
	}

	n, err := affected(ctx, q, dialect.Update(tableBookings).Prepared(true).Set(goqu.Record{
		"status":              string(b.Status),
		"booked_at":           b.BookedAt,
		"available_for_lunch": b.AvailableForLunch,
		"updated_at":          b.UpdatedAt,
	}).Where(goqu.Ex{"id": b.ID, "status": string(w.Expect)}))
	if err != nil {
		return b, err
	}
	if n == 0 {
		return b, store.ErrConflict
	}
	return b, nil
}

func (s *BookingStore) FindByDateAndStatus(ctx context.Context, date time.Time, status booking.Status) ([]booking.MealBooking, error) {
	sql, args, err := build(s.selectBookings().
		Where(goqu.Ex{"booking_date": date, "status": string(status)}).
		Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var out []booking.MealBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BookingStore) FindAllBookedToday(ctx context.Context, today time.Time) ([]booking.MealBooking, error) {
	return s.FindByDateAndStatus(ctx, today, booking.StatusBooked)
}

func (s *BookingStore) UpdateStatus(ctx context.Context, id int64, from, to booking.Status, at time.Time) (bool, error) {
	n, err := affected(ctx, s.db, dialect.Update(tableBookings).Prepared(true).
		Set(goqu.Record{"status": string(to), "updated_at": at}).
		Where(goqu.Ex{"id": id, "status": string(from)}))
	return n > 0, err
}

func (s *BookingStore) SetAvailableForLunch(ctx context.Context, id int64, available bool, at time.Time) error {
	n, err := affected(ctx, s.db, dialect.Update(tableBookings).Prepared(true).
		Set(goqu.Record{"available_for_lunch": available, "updated_at": at}).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.BookingStore = (*BookingStore)(nil)
