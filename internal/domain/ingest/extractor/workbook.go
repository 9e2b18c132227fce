package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

// extractWorkbook reads the first sheet of a binary workbook. Leading title
// rows are skipped per the source schema configuration; the first remaining
// row is the header.
func extractWorkbook(data []byte, opts Options) (*RowSet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	start := opts.SkipTitleRows
	if start >= len(rows) {
		return nil, ErrNoRows
	}

	headers := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		headers[i] = strings.TrimSpace(h)
	}

	rs := &RowSet{Headers: headers, Source: sniffer.FormatBinaryWorkbook}

	for _, row := range rows[start+1:] {
		if allBlank(row) {
			continue
		}
		// excelize trims trailing empty cells; pad back to header width so
		// downstream indexing stays positional.
		if len(row) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, row)
			row = padded
		} else if len(row) > len(headers) {
			row = row[:len(headers)]
		}
		rs.Rows = append(rs.Rows, row)
	}

	if len(rs.Rows) == 0 {
		return nil, ErrNoRows
	}
	return rs, nil
}
