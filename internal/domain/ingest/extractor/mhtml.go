package extractor

import (
	"fmt"
	"html"
	"io"
	"mime/quotedprintable"
	"regexp"
	"strings"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

// mhtmlLayout is the canonical column layout of the MHTML export template.
// The template is fixed and narrow, which is why regex row-splitting is
// acceptable here instead of a full HTML parser.
var mhtmlLayout = []string{
	"Practitioner",
	"Date",
	"Patient",
	"Charge Type",
	"Charge Desc",
	"Qty",
	"Calculated Payment (Line)",
}

// mhtmlKnownWidths maps a row's cell count to the number of leading columns
// the export omitted. Practitioner and Date are rendered as row-spanning
// cells, so continuation rows arrive without them.
var mhtmlKnownWidths = map[int]int{
	7: 0, // full row
	6: 1, // practitioner spanned
	5: 2, // practitioner and date spanned
}

var (
	boundaryRe  = regexp.MustCompile(`boundary="?([^";\r\n]+)"?`)
	tableRowRe  = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	tableCellRe = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	htmlTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	currencyRe  = regexp.MustCompile(`^\(?-?\$\s*[\d,]+(?:\.\d+)?\)?$|^\(?-?[\d,]+\.\d{2}\)?$`)
)

// spanState carries the "last known value" per column across the extraction
// loop so that row-span continuation rows inherit their missing leading
// cells. One instance per extraction run; never shared.
type spanState struct {
	last []string
}

func newSpanState(width int) *spanState {
	return &spanState{last: make([]string, width)}
}

// overlay fills the missing leading columns of a short row from the most
// recent row that supplied them, then records the row's own values.
func (s *spanState) overlay(cells []string) []string {
	missing := len(s.last) - len(cells)
	if missing < 0 {
		missing = 0
		cells = cells[len(cells)-len(s.last):]
	}
	out := make([]string, len(s.last))
	copy(out, s.last[:missing])
	copy(out[missing:], cells)
	copy(s.last, out)
	return out
}

// extractMHTML parses a browser-saved MHTML document that the billing system
// labels as a spreadsheet. It locates the HTML-table MIME part, undoes
// quoted-printable escaping, and walks <tr> elements with row-span
// inheritance.
func extractMHTML(data []byte) (*RowSet, error) {
	body, err := htmlTablePart(string(data))
	if err != nil {
		return nil, err
	}

	rows := tableRowRe.FindAllStringSubmatch(body, -1)
	if len(rows) == 0 {
		return nil, fmt.Errorf("mhtml: no table rows found")
	}

	rs := &RowSet{Headers: mhtmlLayout, Source: sniffer.FormatMHTML}
	state := newSpanState(len(mhtmlLayout))

	for _, m := range rows {
		cells := extractCells(m[1])
		if len(cells) == 0 || allBlank(cells) {
			continue
		}
		if isMHTMLHeaderRow(cells) {
			continue
		}

		if _, known := mhtmlKnownWidths[len(cells)]; !known {
			aligned, ok := alignByCurrency(cells)
			if !ok {
				rs.Dropped++
				continue
			}
			cells = aligned
		}

		rs.Rows = append(rs.Rows, state.overlay(cells))
	}

	if len(rs.Rows) == 0 {
		return nil, ErrNoRows
	}
	return rs, nil
}

// htmlTablePart splits the MHTML document on its MIME boundary and returns
// the decoded body of the part containing an HTML table.
func htmlTablePart(doc string) (string, error) {
	parts := splitMIMEParts(doc)
	for _, part := range parts {
		headers, body := splitPartHeaders(part)
		if !strings.Contains(strings.ToLower(body), "<table") {
			continue
		}
		if strings.Contains(strings.ToLower(headers), "quoted-printable") {
			body = decodeQuotedPrintable(body)
		}
		return body, nil
	}
	return "", fmt.Errorf("mhtml: no part contains an html table")
}

func splitMIMEParts(doc string) []string {
	if m := boundaryRe.FindStringSubmatch(doc); m != nil {
		return strings.Split(doc, "--"+strings.TrimSpace(m[1]))
	}
	// Single-part documents saved without a boundary: treat the whole
	// document as one part.
	return []string{doc}
}

func splitPartHeaders(part string) (headers, body string) {
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if idx := strings.Index(part, sep); idx >= 0 {
			return part[:idx], part[idx+len(sep):]
		}
	}
	return "", part
}

// decodeQuotedPrintable strips =XX escapes and soft line breaks. A decode
// error falls back to the raw body; the export's escaping is shallow enough
// that partial decoding still yields usable cells.
func decodeQuotedPrintable(body string) string {
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	if err != nil && len(decoded) == 0 {
		return body
	}
	return string(decoded)
}

func extractCells(rowHTML string) []string {
	matches := tableCellRe.FindAllStringSubmatch(rowHTML, -1)
	cells := make([]string, 0, len(matches))
	for _, m := range matches {
		text := htmlTagRe.ReplaceAllString(m[1], " ")
		text = html.UnescapeString(text)
		text = strings.ReplaceAll(text, "\u00a0", " ")
		cells = append(cells, strings.Join(strings.Fields(text), " "))
	}
	return cells
}

func isMHTMLHeaderRow(cells []string) bool {
	for _, c := range cells {
		lower := strings.ToLower(c)
		for _, h := range mhtmlLayout {
			if lower == strings.ToLower(h) {
				return true
			}
		}
	}
	return false
}

// alignByCurrency is the fallback for unrecognized row widths: scan from the
// end of the row for a currency-shaped token and right-align the cells so
// that token lands in the payment-amount column. Leading columns are then
// filled by inheritance like any short row.
func alignByCurrency(cells []string) ([]string, bool) {
	amountIdx := -1
	for i := len(cells) - 1; i >= 0; i-- {
		if currencyRe.MatchString(strings.TrimSpace(cells[i])) {
			amountIdx = i
			break
		}
	}
	if amountIdx < 0 {
		return nil, false
	}

	kept := cells[:amountIdx+1]
	if len(kept) > len(mhtmlLayout) {
		kept = kept[len(kept)-len(mhtmlLayout):]
	}
	return kept, true
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
