// Package extractor turns classified export files into field-keyed row sets,
// absorbing the format-specific quirks of each export path.
package extractor

import (
	"errors"
	"fmt"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

// RowSet is the format-independent output of extraction: a header naming each
// column and the raw string cells of every surviving data row.
type RowSet struct {
	Headers []string
	Rows    [][]string
	Source  sniffer.Format
	// Dropped counts rows discarded during extraction (field-count
	// mismatches, stray trailer lines). Expected noise, never fatal.
	Dropped int
}

// Options tunes extraction for a given source schema.
type Options struct {
	// SkipTitleRows is the number of leading title rows before the header in
	// binary workbook exports.
	SkipTitleRows int
}

// ErrNoRows indicates a structurally valid file from which no data rows
// could be extracted. Fatal for the file.
var ErrNoRows = errors.New("no data rows extracted")

// Extract dispatches to the format-specific extractor.
func Extract(data []byte, format sniffer.Format, opts Options) (*RowSet, error) {
	switch format {
	case sniffer.FormatUTF16Delimited:
		return extractUTF16(data)
	case sniffer.FormatMHTML:
		return extractMHTML(data)
	case sniffer.FormatVendorDelimited:
		return extractVendorDelimited(data)
	case sniffer.FormatQuotedDelimited:
		return extractQuotedDelimited(data)
	case sniffer.FormatBinaryWorkbook:
		rs, err := extractWorkbook(data, opts)
		if err != nil {
			// The workbook reader was the last fallback; a failure here
			// means nothing recognized the file.
			return nil, fmt.Errorf("%w: %v", sniffer.ErrUnrecognizedFormat, err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("%w: %q", sniffer.ErrUnrecognizedFormat, format)
	}
}
