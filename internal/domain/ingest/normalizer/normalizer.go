// Package normalizer maps raw export rows onto the canonical transaction
// schema: date, patient, charge description, amount. Export templates vary
// in which columns they populate, so each logical field is resolved from a
// prioritized list of candidate headers once per batch.
package normalizer

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/extractor"
)

// Record is a normalized billing transaction.
// Amount is always non-negative; rows that cannot satisfy that are dropped
// before this struct is built.
type Record struct {
	Date       time.Time
	Patient    string
	ChargeDesc string
	Amount     decimal.Decimal
}

// Stats reports how many rows survived normalization.
type Stats struct {
	Total   int
	Kept    int
	Dropped int
}

// minValidYear guards against misparsed workbook serial dates; anything
// earlier cannot be a real clinic transaction.
const minValidYear = 2020

// Candidate headers per logical field, highest preference first.
var (
	dateColumns = []string{
		"Date",
		"Date Of Payment",
	}
	patientColumns = []string{
		"Patient",
		"Patient Name",
		"Client",
	}
	descColumns = []string{
		"Charge Desc",
		"Charge Description",
		"Description",
	}
	amountColumns = []string{
		"Calculated Payment (Line)",
		"Charge Amount",
		"Payment Amount",
		"Amount",
		"Total",
		"Paid",
	}
)

// columns holds resolved indices for one batch (-1 when absent).
type columns struct {
	date    int
	datePay int
	patient int
	desc    int
	amount  int
}

// Normalizer converts extracted row sets into normalized records.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize maps every raw row onto the canonical schema, silently dropping
// rows with an unparseable date, empty description, or non-positive amount.
// These are expected noise: blank lines, subtotal rows, the literal "Total"
// sentinel in the date column.
func (n *Normalizer) Normalize(rs *extractor.RowSet) ([]Record, Stats) {
	cols := resolveColumns(rs.Headers)
	stats := Stats{Total: len(rs.Rows)}
	records := make([]Record, 0, len(rs.Rows))

	for _, row := range rs.Rows {
		rec, ok := n.normalizeRow(row, cols)
		if !ok {
			stats.Dropped++
			continue
		}
		records = append(records, rec)
		stats.Kept++
	}

	if stats.Dropped > 0 {
		n.logger.Debug("rows dropped during normalization",
			slog.Int("dropped", stats.Dropped),
			slog.Int("kept", stats.Kept),
		)
	}

	return records, stats
}

func (n *Normalizer) normalizeRow(row []string, cols columns) (Record, bool) {
	// Transaction date preferred; fall back to date-of-payment. Different
	// export variants populate one or the other, or both, inconsistently.
	dateStr := cellAt(row, cols.date)
	if dateStr == "" {
		dateStr = cellAt(row, cols.datePay)
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		return Record{}, false
	}

	desc := cellAt(row, cols.desc)
	if desc == "" {
		return Record{}, false
	}

	amount, err := ParseAmount(cellAt(row, cols.amount))
	if err != nil || !amount.IsPositive() {
		return Record{}, false
	}

	return Record{
		Date:       date,
		Patient:    cellAt(row, cols.patient),
		ChargeDesc: desc,
		Amount:     amount,
	}, true
}

// resolveColumns probes the header row once per batch rather than
// re-resolving candidates per row.
func resolveColumns(headers []string) columns {
	cols := columns{date: -1, datePay: -1, patient: -1, desc: -1, amount: -1}

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	find := func(candidates []string) int {
		for _, c := range candidates {
			want := strings.ToLower(c)
			for i, h := range normalized {
				if h == want {
					return i
				}
			}
		}
		return -1
	}

	cols.date = find(dateColumns[:1])
	cols.datePay = find(dateColumns[1:])
	cols.patient = find(patientColumns)
	cols.desc = find(descColumns)
	cols.amount = find(amountColumns)
	return cols
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var (
	errEmptyDate       = errors.New("empty date")
	errUnparseableDate = errors.New("unparseable date")
	errDateOutOfRange  = errors.New("date before 2020")
	errEmptyAmount     = errors.New("empty amount")
)

// workbookEpoch is the zero day of spreadsheet serial dates.
var workbookEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const twoDigitYearLayout = "1/2/06"

var dateLayouts = []string{
	"1/2/2006",
	twoDigitYearLayout,
	"2006-01-02",
}

// ParseDate accepts M/D/YY, M/D/YYYY, ISO dates, and workbook numeric
// serials (days since 1899-12-30). Two-digit years map to 2000+YY. Dates
// before 2020 are rejected as misparses.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// time.Parse reads "06" years 69-99 as 19xx; the exports mean
		// 2000+YY throughout.
		if layout == twoDigitYearLayout && t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		if t.Year() < minValidYear {
			return time.Time{}, errDateOutOfRange
		}
		return t.UTC(), nil
	}

	// Workbook serial date.
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t := workbookEpoch.AddDate(0, 0, int(serial))
		if t.Year() < minValidYear {
			return time.Time{}, errDateOutOfRange
		}
		return t, nil
	}

	return time.Time{}, errUnparseableDate
}

// ParseAmount cleans a currency string and parses it as a decimal. `$` and
// thousands separators are stripped; a value wrapped in parentheses is
// negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
