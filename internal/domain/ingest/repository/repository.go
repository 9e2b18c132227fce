// Package repository provides database operations for weekly metrics.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/aggregate"
)

// DB is the subset of pgxpool.Pool the repositories use. pgxmock satisfies
// it, which keeps the postgres implementations testable without a database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MetricsRepository defines persistence for weekly metrics records.
type MetricsRepository interface {
	// UpsertWeek inserts the record or replaces all derived fields when a
	// record already exists for (week_start, week_end).
	UpsertWeek(ctx context.Context, m *aggregate.WeeklyMetrics) error
	GetWeek(ctx context.Context, weekStart, weekEnd time.Time) (*aggregate.WeeklyMetrics, error)
	// RefreshMonthlyRollup rebuilds the month-to-date materialized view.
	RefreshMonthlyRollup(ctx context.Context) error
}
