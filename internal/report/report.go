// Package report reads booking statistics for operators. It uses its own
// database/sql connection (lib/pq via sqlx) so queries can be traced with
// X-Ray when tracing is enabled.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/example/mealbook/internal/domain/booking"
)

type DB struct {
	*sqlx.DB
}

// Open connects with lib/pq; with tracing on, the driver is wrapped by
// xray.SQLContext so each query becomes a subsegment.
func Open(dsn string, tracing bool) (*DB, error) {
	if !tracing {
		conn, err := sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return &DB{conn}, nil
	}
	db, err := xray.SQLContext("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database with X-Ray: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &DB{sqlx.NewDb(db, "postgres")}, nil
}

// StatusCount is one (date, status) bucket.
type StatusCount struct {
	Date      time.Time `db:"booking_date"`
	Status    string    `db:"status"`
	Count     int       `db:"n"`
	Available int       `db:"available"`
}

type DaySummary struct {
	Date      time.Time
	Booked    int
	Defaulted int
	Cancelled int
	// Available counts bookings flagged present by a location update.
	Available int
}

type Repository interface {
	StatusCounts(ctx context.Context, from, to time.Time) ([]StatusCount, error)
}

type RepositoryImpl struct {
	db *DB
}

func NewRepository(db *DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) StatusCounts(ctx context.Context, from, to time.Time) (out []StatusCount, err error) {
	ctx, done := subsegment(ctx, "ReportRepository.StatusCounts")
	defer func() { done(err) }()

	query := `
		SELECT
			booking_date,
			status,
			COUNT(*) AS n,
			COUNT(*) FILTER (WHERE available_for_lunch) AS available
		FROM meal_bookings
		WHERE booking_date BETWEEN $1 AND $2
		GROUP BY booking_date, status
		ORDER BY booking_date ASC
	`
	if err := r.db.SelectContext(ctx, &out, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query booking counts: %w", err)
	}
	return out, nil
}

// subsegment opens an X-Ray subsegment when ctx already carries a segment,
// and is a no-op otherwise.
func subsegment(ctx context.Context, name string) (context.Context, func(error)) {
	if xray.GetSegment(ctx) == nil {
		return ctx, func(error) {}
	}
	ctx, seg := xray.BeginSubsegment(ctx, name)
	return ctx, func(err error) { seg.Close(err) }
}

// Summarize folds status buckets into one row per date, oldest first.
func Summarize(counts []StatusCount) []DaySummary {
	byDate := map[time.Time]*DaySummary{}
	for _, c := range counts {
		d := time.Date(c.Date.Year(), c.Date.Month(), c.Date.Day(), 0, 0, 0, 0, time.UTC)
		s, ok := byDate[d]
		if !ok {
			s = &DaySummary{Date: d}
			byDate[d] = s
		}
		switch booking.Status(c.Status) {
		case booking.StatusBooked:
			s.Booked += c.Count
		case booking.StatusDefault:
			s.Defaulted += c.Count
		case booking.StatusCancelled:
			s.Cancelled += c.Count
		}
		s.Available += c.Available
	}

	out := make([]DaySummary, 0, len(byDate))
	for _, s := range byDate {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Daily loads and summarizes [from, to] inside an X-Ray segment when
// tracing is enabled.
func Daily(ctx context.Context, repo Repository, from, to time.Time, tracing bool) ([]DaySummary, error) {
	if tracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, "mealbook-report")
		defer seg.Close(nil)
	}
	counts, err := repo.StatusCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Summarize(counts), nil
}
