package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/aggregate"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/categorize"
)

// PostgresMetricsRepository implements MetricsRepository using PostgreSQL.
type PostgresMetricsRepository struct {
	db DB
}

// NewPostgresMetricsRepository creates a new PostgreSQL metrics repository.
func NewPostgresMetricsRepository(db DB) *PostgresMetricsRepository {
	return &PostgresMetricsRepository{db: db}
}

// UpsertWeek writes one weekly metrics record keyed by (week_start, week_end).
func (r *PostgresMetricsRepository) UpsertWeek(ctx context.Context, m *aggregate.WeeklyMetrics) error {
	categoryJSON, err := json.Marshal(m.RevenueByCategoryWeekly)
	if err != nil {
		return fmt.Errorf("failed to encode category revenue: %w", err)
	}

	query := `
		INSERT INTO weekly_metrics (
			week_start, week_end,
			actual_weekly_revenue, actual_monthly_revenue,
			drip_iv_revenue_weekly, drip_iv_revenue_monthly,
			semaglutide_revenue_weekly, semaglutide_revenue_monthly,
			revenue_by_category_weekly,
			iv_infusions_weekday_weekly, iv_infusions_weekend_weekly,
			iv_infusions_weekday_monthly, iv_infusions_weekend_monthly,
			injections_weekday_weekly, injections_weekend_weekly,
			injections_weekday_monthly, injections_weekend_monthly,
			unique_customers_weekly, unique_customers_monthly,
			member_customers_weekly, non_member_customers_weekly,
			new_individual_members_weekly, new_family_members_weekly,
			new_concierge_members_weekly, new_corporate_members_weekly
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (week_start, week_end) DO UPDATE SET
			actual_weekly_revenue = EXCLUDED.actual_weekly_revenue,
			actual_monthly_revenue = EXCLUDED.actual_monthly_revenue,
			drip_iv_revenue_weekly = EXCLUDED.drip_iv_revenue_weekly,
			drip_iv_revenue_monthly = EXCLUDED.drip_iv_revenue_monthly,
			semaglutide_revenue_weekly = EXCLUDED.semaglutide_revenue_weekly,
			semaglutide_revenue_monthly = EXCLUDED.semaglutide_revenue_monthly,
			revenue_by_category_weekly = EXCLUDED.revenue_by_category_weekly,
			iv_infusions_weekday_weekly = EXCLUDED.iv_infusions_weekday_weekly,
			iv_infusions_weekend_weekly = EXCLUDED.iv_infusions_weekend_weekly,
			iv_infusions_weekday_monthly = EXCLUDED.iv_infusions_weekday_monthly,
			iv_infusions_weekend_monthly = EXCLUDED.iv_infusions_weekend_monthly,
			injections_weekday_weekly = EXCLUDED.injections_weekday_weekly,
			injections_weekend_weekly = EXCLUDED.injections_weekend_weekly,
			injections_weekday_monthly = EXCLUDED.injections_weekday_monthly,
			injections_weekend_monthly = EXCLUDED.injections_weekend_monthly,
			unique_customers_weekly = EXCLUDED.unique_customers_weekly,
			unique_customers_monthly = EXCLUDED.unique_customers_monthly,
			member_customers_weekly = EXCLUDED.member_customers_weekly,
			non_member_customers_weekly = EXCLUDED.non_member_customers_weekly,
			new_individual_members_weekly = EXCLUDED.new_individual_members_weekly,
			new_family_members_weekly = EXCLUDED.new_family_members_weekly,
			new_concierge_members_weekly = EXCLUDED.new_concierge_members_weekly,
			new_corporate_members_weekly = EXCLUDED.new_corporate_members_weekly,
			updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		m.WeekStart, m.WeekEnd,
		m.ActualWeeklyRevenue, m.ActualMonthlyRevenue,
		m.DripIVRevenueWeekly, m.DripIVRevenueMonthly,
		m.SemaglutideRevenueWeekly, m.SemaglutideRevenueMonthly,
		categoryJSON,
		m.IVInfusionsWeekdayWeekly, m.IVInfusionsWeekendWeekly,
		m.IVInfusionsWeekdayMonthly, m.IVInfusionsWeekendMonthly,
		m.InjectionsWeekdayWeekly, m.InjectionsWeekendWeekly,
		m.InjectionsWeekdayMonthly, m.InjectionsWeekendMonthly,
		m.UniqueCustomersWeekly, m.UniqueCustomersMonthly,
		m.MemberCustomersWeekly, m.NonMemberCustomersWeekly,
		m.NewIndividualMembersWeekly, m.NewFamilyMembersWeekly,
		m.NewConciergeMembersWeekly, m.NewCorporateMembersWeekly,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly metrics: %w", err)
	}
	return nil
}

// GetWeek retrieves the metrics record for one reporting week.
func (r *PostgresMetricsRepository) GetWeek(ctx context.Context, weekStart, weekEnd time.Time) (*aggregate.WeeklyMetrics, error) {
	query := `
		SELECT week_start, week_end,
			actual_weekly_revenue, actual_monthly_revenue,
			drip_iv_revenue_weekly, drip_iv_revenue_monthly,
			semaglutide_revenue_weekly, semaglutide_revenue_monthly,
			revenue_by_category_weekly,
			iv_infusions_weekday_weekly, iv_infusions_weekend_weekly,
			iv_infusions_weekday_monthly, iv_infusions_weekend_monthly,
			injections_weekday_weekly, injections_weekend_weekly,
			injections_weekday_monthly, injections_weekend_monthly,
			unique_customers_weekly, unique_customers_monthly,
			member_customers_weekly, non_member_customers_weekly,
			new_individual_members_weekly, new_family_members_weekly,
			new_concierge_members_weekly, new_corporate_members_weekly
		FROM weekly_metrics
		WHERE week_start = $1 AND week_end = $2`

	m := &aggregate.WeeklyMetrics{}
	var categoryJSON []byte
	err := r.db.QueryRow(ctx, query, weekStart, weekEnd).Scan(
		&m.WeekStart, &m.WeekEnd,
		&m.ActualWeeklyRevenue, &m.ActualMonthlyRevenue,
		&m.DripIVRevenueWeekly, &m.DripIVRevenueMonthly,
		&m.SemaglutideRevenueWeekly, &m.SemaglutideRevenueMonthly,
		&categoryJSON,
		&m.IVInfusionsWeekdayWeekly, &m.IVInfusionsWeekendWeekly,
		&m.IVInfusionsWeekdayMonthly, &m.IVInfusionsWeekendMonthly,
		&m.InjectionsWeekdayWeekly, &m.InjectionsWeekendWeekly,
		&m.InjectionsWeekdayMonthly, &m.InjectionsWeekendMonthly,
		&m.UniqueCustomersWeekly, &m.UniqueCustomersMonthly,
		&m.MemberCustomersWeekly, &m.NonMemberCustomersWeekly,
		&m.NewIndividualMembersWeekly, &m.NewFamilyMembersWeekly,
		&m.NewConciergeMembersWeekly, &m.NewCorporateMembersWeekly,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly metrics: %w", err)
	}

	m.RevenueByCategoryWeekly = make(map[categorize.Category]decimal.Decimal)
	if len(categoryJSON) > 0 {
		if err := json.Unmarshal(categoryJSON, &m.RevenueByCategoryWeekly); err != nil {
			return nil, fmt.Errorf("failed to decode category revenue: %w", err)
		}
	}
	return m, nil
}

// RefreshMonthlyRollup rebuilds the monthly rollup view after an upsert.
func (r *PostgresMetricsRepository) RefreshMonthlyRollup(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY monthly_revenue_rollup`)
	if err != nil {
		return fmt.Errorf("failed to refresh monthly rollup: %w", err)
	}
	return nil
}
