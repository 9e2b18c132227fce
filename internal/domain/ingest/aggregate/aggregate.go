// Package aggregate folds normalized, categorized transactions into the
// weekly metrics record. Week and month membership are independent range
// tests: a row can count toward month-to-date totals without falling in the
// reporting week, and vice versa.
package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/categorize"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/normalizer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/week"
)

// DefaultZeroRevenueRowThreshold is the batch size above which a zero total
// is treated as a mis-mapped amount column instead of a quiet week.
const DefaultZeroRevenueRowThreshold = 10

// ZeroRevenueError aborts a run whose rows parsed but whose amounts all came
// out zero. Persisting that record would overwrite good historical data.
type ZeroRevenueError struct {
	Rows int
}

func (e *ZeroRevenueError) Error() string {
	return fmt.Sprintf("aggregate: %d rows produced zero revenue, refusing to persist", e.Rows)
}

// WeeklyMetrics is the output record, keyed by (WeekStart, WeekEnd).
// Recomputed fresh on every run; never mutated incrementally.
type WeeklyMetrics struct {
	WeekStart time.Time
	WeekEnd   time.Time

	ActualWeeklyRevenue       decimal.Decimal
	ActualMonthlyRevenue      decimal.Decimal
	DripIVRevenueWeekly       decimal.Decimal
	DripIVRevenueMonthly      decimal.Decimal
	SemaglutideRevenueWeekly  decimal.Decimal
	SemaglutideRevenueMonthly decimal.Decimal

	RevenueByCategoryWeekly map[categorize.Category]decimal.Decimal

	IVInfusionsWeekdayWeekly  int
	IVInfusionsWeekendWeekly  int
	IVInfusionsWeekdayMonthly int
	IVInfusionsWeekendMonthly int
	InjectionsWeekdayWeekly   int
	InjectionsWeekendWeekly   int
	InjectionsWeekdayMonthly  int
	InjectionsWeekendMonthly  int

	UniqueCustomersWeekly    int
	UniqueCustomersMonthly   int
	MemberCustomersWeekly    int
	NonMemberCustomersWeekly int

	NewIndividualMembersWeekly int
	NewFamilyMembersWeekly     int
	NewConciergeMembersWeekly  int
	NewCorporateMembersWeekly  int
}

// Aggregator accumulates one batch into a WeeklyMetrics record.
type Aggregator struct {
	taxonomy  *categorize.Taxonomy
	threshold int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithZeroRevenueRowThreshold overrides the zero-revenue guard threshold.
func WithZeroRevenueRowThreshold(n int) Option {
	return func(a *Aggregator) { a.threshold = n }
}

// WithTaxonomy selects the categorization variant.
func WithTaxonomy(t *categorize.Taxonomy) Option {
	return func(a *Aggregator) { a.taxonomy = t }
}

// New creates an Aggregator with the standard taxonomy.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		taxonomy:  categorize.StandardTaxonomy(),
		threshold: DefaultZeroRevenueRowThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate folds records into a WeeklyMetrics for the given windows.
// Customer sets are materialized to cardinalities only at the end.
func (a *Aggregator) Aggregate(records []normalizer.Record, weekWin, monthWin week.Window) (*WeeklyMetrics, error) {
	m := &WeeklyMetrics{
		WeekStart:               weekWin.Start,
		WeekEnd:                 weekWin.End,
		RevenueByCategoryWeekly: make(map[categorize.Category]decimal.Decimal),
	}

	weeklyCustomers := make(map[string]struct{})
	monthlyCustomers := make(map[string]struct{})
	memberCustomers := make(map[string]struct{})
	nonMemberCustomers := make(map[string]struct{})

	for _, rec := range records {
		cat := a.taxonomy.Categorize(rec.ChargeDesc)
		inWeek := weekWin.Contains(rec.Date)
		inMonth := monthWin.Contains(rec.Date)
		weekend := week.IsWeekend(rec.Date)

		if inWeek {
			m.ActualWeeklyRevenue = m.ActualWeeklyRevenue.Add(rec.Amount)
			m.RevenueByCategoryWeekly[cat] = m.RevenueByCategoryWeekly[cat].Add(rec.Amount)
		}
		if inMonth {
			m.ActualMonthlyRevenue = m.ActualMonthlyRevenue.Add(rec.Amount)
		}

		// Infusion therapy is its own bucket; base services and add-ons
		// never leak into the weight-management sums below.
		if cat == categorize.CategoryBaseInfusion || cat == categorize.CategoryInfusionAddon {
			if inWeek {
				m.DripIVRevenueWeekly = m.DripIVRevenueWeekly.Add(rec.Amount)
			}
			if inMonth {
				m.DripIVRevenueMonthly = m.DripIVRevenueMonthly.Add(rec.Amount)
			}
		}

		// The semaglutide/tirzepatide family is tracked cross-cutting: an
		// injection or program row matching the substance contributes here
		// on top of its primary category.
		if isSemaglutideFamily(cat, rec.ChargeDesc) {
			if inWeek {
				m.SemaglutideRevenueWeekly = m.SemaglutideRevenueWeekly.Add(rec.Amount)
			}
			if inMonth {
				m.SemaglutideRevenueMonthly = m.SemaglutideRevenueMonthly.Add(rec.Amount)
			}
		}

		switch cat {
		case categorize.CategoryBaseInfusion:
			countVisit(&m.IVInfusionsWeekdayWeekly, &m.IVInfusionsWeekendWeekly, inWeek, weekend)
			countVisit(&m.IVInfusionsWeekdayMonthly, &m.IVInfusionsWeekendMonthly, inMonth, weekend)
		case categorize.CategoryStandaloneInjection:
			countVisit(&m.InjectionsWeekdayWeekly, &m.InjectionsWeekendWeekly, inWeek, weekend)
			countVisit(&m.InjectionsWeekdayMonthly, &m.InjectionsWeekendMonthly, inMonth, weekend)
		}

		if patient := strings.TrimSpace(rec.Patient); patient != "" {
			if inWeek {
				weeklyCustomers[patient] = struct{}{}
				if isMemberPriced(rec.ChargeDesc) {
					memberCustomers[patient] = struct{}{}
				} else {
					nonMemberCustomers[patient] = struct{}{}
				}
			}
			if inMonth {
				monthlyCustomers[patient] = struct{}{}
			}
		}
	}

	m.UniqueCustomersWeekly = len(weeklyCustomers)
	m.UniqueCustomersMonthly = len(monthlyCustomers)
	m.MemberCustomersWeekly = len(memberCustomers)
	m.NonMemberCustomersWeekly = len(nonMemberCustomers)

	if len(records) > a.threshold && m.ActualWeeklyRevenue.IsZero() && m.ActualMonthlyRevenue.IsZero() {
		return nil, &ZeroRevenueError{Rows: len(records)}
	}

	return m, nil
}

func countVisit(weekday, weekend *int, inRange, isWeekend bool) {
	if !inRange {
		return
	}
	if isWeekend {
		*weekend++
	} else {
		*weekday++
	}
}

// isMemberPriced reads the price-tier marker embedded in the description.
// "(Non-Member)" must be tested first since it contains "(member)".
func isMemberPriced(desc string) bool {
	upper := strings.ToUpper(desc)
	if strings.Contains(upper, "NON-MEMBER") || strings.Contains(upper, "NON MEMBER") {
		return false
	}
	return strings.Contains(upper, "(MEMBER)") || strings.Contains(upper, "MEMBER")
}

func isSemaglutideFamily(cat categorize.Category, desc string) bool {
	if cat != categorize.CategoryStandaloneInjection && cat != categorize.CategoryWeightManagement {
		return false
	}
	upper := strings.ToUpper(desc)
	return strings.Contains(upper, "SEMAGLUTIDE") || strings.Contains(upper, "TIRZEPATIDE")
}
