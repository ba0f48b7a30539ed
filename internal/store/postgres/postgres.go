// Package postgres implements the store interfaces on PostgreSQL through
// pgx, with statements built by goqu.
package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/example/mealbook/internal/db"
)

const (
	tableUsers         = "users"
	tableBookings      = "meal_bookings"
	tableLocations     = "user_locations"
	tableCutoffs       = "cutoff_configs"
	tableNotifications = "notifications"
)

var dialect = goqu.Dialect("postgres")

type sqler interface {
	ToSQL() (string, []interface{}, error)
}

func build(q sqler) (string, []any, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return sql, args, nil
}

func count(ctx context.Context, q db.Querier, ds *goqu.SelectDataset) (int64, error) {
	sql, args, err := build(ds.Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, db.WrapNotFound(err)
	}
	return n, nil
}

func affected(ctx context.Context, q db.Querier, ds sqler) (int64, error) {
	sql, args, err := build(ds)
	if err != nil {
		return 0, err
	}
	n, err := q.ExecAffected(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}
	return n, nil
}
