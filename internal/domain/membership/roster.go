// Package membership tracks first-time membership signups across repeated
// roster uploads. The registry is the only state shared between ingestion
// runs; everything else in the pipeline is recomputed per batch.
package membership

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/normalizer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

// Type is a derived membership tier.
type Type string

const (
	TypeIndividual Type = "individual"
	TypeFamily     Type = "family"
	TypeConcierge  Type = "concierge"
	TypeCorporate  Type = "corporate"
)

// RosterEntry is one validated roster row.
type RosterEntry struct {
	Patient   string
	Title     string
	Type      Type
	StartDate time.Time
}

// MemberKey is the registry identity: patient, tier, and start date. Two
// signups by the same patient for different tiers, or the same tier
// restarted on a new date, are distinct memberships.
func (e RosterEntry) MemberKey() string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(e.Patient)),
		e.Type,
		e.StartDate.Format("2006-01-02"),
	)
}

// RosterStats reports row-level validation outcomes for one roster file.
type RosterStats struct {
	Total    int
	Kept     int
	Rejected int
}

// rosterRow mirrors the roster export's header variants. Different template
// versions label the tier column differently; the first non-empty wins.
type rosterRow struct {
	Patient        string `csv:"Patient"`
	PatientName    string `csv:"Patient Name"`
	Title          string `csv:"Title"`
	MembershipType string `csv:"Membership Type"`
	Type           string `csv:"Type"`
	Plan           string `csv:"Plan"`
	Membership     string `csv:"Membership"`
	StartDate      string `csv:"Start Date"`
}

func (r rosterRow) patient() string {
	if p := strings.TrimSpace(r.Patient); p != "" {
		return p
	}
	return strings.TrimSpace(r.PatientName)
}

func (r rosterRow) title() string {
	for _, t := range []string{r.Title, r.MembershipType, r.Type, r.Plan, r.Membership} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

// ParseRoster reads a membership roster in workbook or delimited form and
// returns the validated entries. Rows missing a patient, title, or parseable
// start date are rejected and counted, never fatal.
func ParseRoster(data []byte, ext string) ([]RosterEntry, RosterStats, error) {
	format, err := sniffer.Detect(data, ext)
	if err != nil {
		return nil, RosterStats{}, fmt.Errorf("roster: %w", err)
	}

	var rows []rosterRow
	switch format {
	case sniffer.FormatBinaryWorkbook:
		rows, err = rosterFromWorkbook(data)
	case sniffer.FormatMHTML:
		return nil, RosterStats{}, fmt.Errorf("roster: %w: html exports are not a supported roster format", sniffer.ErrUnrecognizedFormat)
	case sniffer.FormatUTF16Delimited:
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, derr := transform.Bytes(decoder, data)
		if derr != nil {
			return nil, RosterStats{}, fmt.Errorf("roster: decode utf-16: %w", derr)
		}
		err = gocsv.UnmarshalBytes(decoded, &rows)
	default:
		err = gocsv.UnmarshalBytes(data, &rows)
	}
	if err != nil {
		return nil, RosterStats{}, fmt.Errorf("roster: parse: %w", err)
	}

	stats := RosterStats{Total: len(rows)}
	entries := make([]RosterEntry, 0, len(rows))
	for _, row := range rows {
		entry, ok := validateRow(row)
		if !ok {
			stats.Rejected++
			continue
		}
		entries = append(entries, entry)
		stats.Kept++
	}
	return entries, stats, nil
}

func validateRow(row rosterRow) (RosterEntry, bool) {
	patient := row.patient()
	title := row.title()
	if patient == "" || title == "" {
		return RosterEntry{}, false
	}

	typ, ok := DeriveType(title)
	if !ok {
		return RosterEntry{}, false
	}

	start, err := normalizer.ParseDate(row.StartDate)
	if err != nil {
		return RosterEntry{}, false
	}

	return RosterEntry{
		Patient:   patient,
		Title:     title,
		Type:      typ,
		StartDate: start,
	}, true
}

// DeriveType maps a free-text membership title onto a tier by substring.
// A non-empty title with no tier keyword defaults to individual; the empty
// title is the only unparseable case.
func DeriveType(title string) (Type, bool) {
	lower := strings.ToLower(strings.TrimSpace(title))
	switch {
	case lower == "":
		return "", false
	case strings.Contains(lower, "family"):
		return TypeFamily, true
	case strings.Contains(lower, "concierge"):
		return TypeConcierge, true
	case strings.Contains(lower, "corporate"):
		return TypeCorporate, true
	default:
		return TypeIndividual, true
	}
}

// rosterFromWorkbook reads roster rows from the first sheet, resolving
// columns by header name like the delimited path does.
func rosterFromWorkbook(data []byte) ([]rosterRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(raw[0]))
	for i, h := range raw[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rows := make([]rosterRow, 0, len(raw)-1)
	for _, row := range raw[1:] {
		rows = append(rows, rosterRow{
			Patient:        cell(row, "patient"),
			PatientName:    cell(row, "patient name"),
			Title:          cell(row, "title"),
			MembershipType: cell(row, "membership type"),
			Type:           cell(row, "type"),
			Plan:           cell(row, "plan"),
			Membership:     cell(row, "membership"),
			StartDate:      cell(row, "start date"),
		})
	}
	return rows, nil
}
