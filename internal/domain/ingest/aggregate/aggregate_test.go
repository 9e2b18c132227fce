package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/categorize"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/normalizer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/week"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func janWeek() (week.Window, week.Window) {
	w := week.Window{Start: day(2025, time.January, 13), End: day(2025, time.January, 19)}
	m := week.Window{Start: day(2025, time.January, 1), End: day(2025, time.January, 31)}
	return w, m
}

func TestAggregate_SingleInfusionRow(t *testing.T) {
	weekWin, monthWin := janWeek()

	// Jan 13 2025 is a Monday.
	records := []normalizer.Record{
		{Date: day(2025, time.January, 13), Patient: "Jane Doe", ChargeDesc: "Saline 1L (Member)", Amount: money("45.00")},
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	assert.True(t, money("45.00").Equal(m.ActualWeeklyRevenue))
	assert.True(t, money("45.00").Equal(m.RevenueByCategoryWeekly[categorize.CategoryBaseInfusion]))
	assert.True(t, money("45.00").Equal(m.DripIVRevenueWeekly))
	assert.Equal(t, 1, m.IVInfusionsWeekdayWeekly)
	assert.Equal(t, 0, m.IVInfusionsWeekendWeekly)
	assert.Equal(t, 1, m.UniqueCustomersWeekly)
	assert.Equal(t, 1, m.MemberCustomersWeekly)
	assert.Equal(t, 0, m.NonMemberCustomersWeekly)
}

func TestAggregate_WeekdayWeekendSplit(t *testing.T) {
	weekWin, monthWin := janWeek()

	records := []normalizer.Record{
		{Date: day(2025, time.January, 14), Patient: "A", ChargeDesc: "Hydration", Amount: money("50")},
		{Date: day(2025, time.January, 18), Patient: "B", ChargeDesc: "Hydration", Amount: money("50")}, // Saturday
		{Date: day(2025, time.January, 19), Patient: "C", ChargeDesc: "B12 Injection", Amount: money("25")}, // Sunday
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	assert.Equal(t, 1, m.IVInfusionsWeekdayWeekly)
	assert.Equal(t, 1, m.IVInfusionsWeekendWeekly)
	assert.Equal(t, 0, m.InjectionsWeekdayWeekly)
	assert.Equal(t, 1, m.InjectionsWeekendWeekly)
}

// Week and month membership are independent: a row outside the reporting
// week still counts toward the month, and a row from a prior month inside
// the week still counts toward the week.
func TestAggregate_IndependentWindows(t *testing.T) {
	weekWin := week.Window{Start: day(2025, time.February, 3), End: day(2025, time.February, 9)}
	monthWin := week.Window{Start: day(2025, time.February, 1), End: day(2025, time.February, 28)}

	records := []normalizer.Record{
		{Date: day(2025, time.February, 4), Patient: "A", ChargeDesc: "Hydration", Amount: money("100")},
		{Date: day(2025, time.February, 20), Patient: "B", ChargeDesc: "Hydration", Amount: money("70")},
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	assert.True(t, money("100").Equal(m.ActualWeeklyRevenue))
	assert.True(t, money("170").Equal(m.ActualMonthlyRevenue))
	assert.Equal(t, 1, m.UniqueCustomersWeekly)
	assert.Equal(t, 2, m.UniqueCustomersMonthly)
}

func TestAggregate_SemaglutideCrossCuttingBucket(t *testing.T) {
	weekWin, monthWin := janWeek()

	records := []normalizer.Record{
		{Date: day(2025, time.January, 14), Patient: "A", ChargeDesc: "Semaglutide 0.5mg Injection", Amount: money("300")},
		{Date: day(2025, time.January, 15), Patient: "B", ChargeDesc: "B12 Injection", Amount: money("25")},
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	// Both rows are standalone injections, but only the semaglutide row
	// feeds the cross-cutting bucket.
	assert.True(t, money("325").Equal(m.RevenueByCategoryWeekly[categorize.CategoryStandaloneInjection]))
	assert.True(t, money("300").Equal(m.SemaglutideRevenueWeekly))
	assert.True(t, m.DripIVRevenueWeekly.IsZero())
}

// Per-category weekly revenue sums back to the weekly total: no row is
// double-counted or lost between categorization and accumulation.
func TestAggregate_Conservation(t *testing.T) {
	weekWin, monthWin := janWeek()

	descs := []string{
		"Saline 1L (Member)", "Glutathione Push", "B12 Injection",
		"Monthly Membership - Individual", "Hormone Consult", "Gift Card",
		"Semaglutide 0.5mg Injection",
	}
	var records []normalizer.Record
	for i, d := range descs {
		records = append(records, normalizer.Record{
			Date:       day(2025, time.January, 13+i%5),
			Patient:    fmt.Sprintf("patient-%d", i),
			ChargeDesc: d,
			Amount:     money("10.50"),
		})
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	var sum decimal.Decimal
	for _, v := range m.RevenueByCategoryWeekly {
		sum = sum.Add(v)
	}
	assert.True(t, sum.Equal(m.ActualWeeklyRevenue), "category sum %s != weekly total %s", sum, m.ActualWeeklyRevenue)
}

// A non-trivial batch whose amounts are all zero means the amount column was
// mis-mapped; persisting zeros would overwrite good data.
func TestAggregate_ZeroRevenueRaises(t *testing.T) {
	weekWin, monthWin := janWeek()

	var records []normalizer.Record
	for i := 0; i < 500; i++ {
		records = append(records, normalizer.Record{
			Date:       day(2025, time.January, 13),
			Patient:    fmt.Sprintf("patient-%d", i),
			ChargeDesc: "Saline 1L",
		})
	}

	_, err := New().Aggregate(records, weekWin, monthWin)
	var zero *ZeroRevenueError
	require.ErrorAs(t, err, &zero)
	assert.Equal(t, 500, zero.Rows)
}

func TestAggregate_SmallZeroBatchAllowed(t *testing.T) {
	weekWin, monthWin := janWeek()

	records := []normalizer.Record{
		{Date: day(2025, time.January, 13), Patient: "A", ChargeDesc: "Saline 1L"},
	}

	m, err := New().Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)
	assert.True(t, m.ActualWeeklyRevenue.IsZero())
}

func TestAggregate_Idempotent(t *testing.T) {
	weekWin, monthWin := janWeek()

	records := []normalizer.Record{
		{Date: day(2025, time.January, 13), Patient: "Jane Doe", ChargeDesc: "Saline 1L (Member)", Amount: money("45.00")},
		{Date: day(2025, time.January, 18), Patient: "John Roe", ChargeDesc: "B12 Injection", Amount: money("25.00")},
	}

	agg := New()
	first, err := agg.Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)
	second, err := agg.Aggregate(records, weekWin, monthWin)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
