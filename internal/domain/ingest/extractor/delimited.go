package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

// extractUTF16 decodes the UTF-16 export (BOM consumed by the decoder) and
// parses the result as quoted delimited text.
func extractUTF16(data []byte) (*RowSet, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("decode utf-16: %w", err)
	}

	// The decoded text may itself carry the vendor quoting dialect.
	if firstLine := firstLine(decoded); strings.HasPrefix(firstLine, `""`) && !strings.HasPrefix(firstLine, `"""`) {
		rs, err := extractVendorDelimited(decoded)
		if err != nil {
			return nil, err
		}
		rs.Source = sniffer.FormatUTF16Delimited
		return rs, nil
	}

	rs, err := extractQuotedDelimited(decoded)
	if err != nil {
		return nil, err
	}
	rs.Source = sniffer.FormatUTF16Delimited
	return rs, nil
}

// extractQuotedDelimited handles standard RFC-4180 quoting: doubled quotes
// inside quoted fields, comma separator, quoted fields may contain commas.
func extractQuotedDelimited(data []byte) (*RowSet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	rs := &RowSet{Headers: headers, Source: sniffer.FormatQuotedDelimited}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rs.Dropped++
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		// Exports occasionally contain stray trailer lines; a field-count
		// mismatch drops the row silently rather than failing the file.
		if len(record) != len(headers) {
			rs.Dropped++
			continue
		}
		rs.Rows = append(rs.Rows, record)
	}

	if len(rs.Rows) == 0 {
		return nil, ErrNoRows
	}
	return rs, nil
}

// extractVendorDelimited parses the vendor dialect whose header wraps every
// field in doubled quotes and writes `,,` for an empty field. A naive split
// on `,` or `""` corrupts both headers and data, so each line is walked by a
// small state machine.
func extractVendorDelimited(data []byte) (*RowSet, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, ErrNoRows
	}

	headers := scanVendorLine(strings.TrimPrefix(lines[0], "\uFEFF"))
	if len(headers) == 0 {
		return nil, fmt.Errorf("vendor dialect: empty header line")
	}

	rs := &RowSet{Headers: headers, Source: sniffer.FormatVendorDelimited}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		record := scanVendorLine(line)
		if len(record) != len(headers) {
			rs.Dropped++
			continue
		}
		rs.Rows = append(rs.Rows, record)
	}

	if len(rs.Rows) == 0 {
		return nil, ErrNoRows
	}
	return rs, nil
}

// scanVendorLine splits one vendor-dialect line into fields. Fields are
// comma-separated; a field may be wrapped in `""..""` (vendor header style)
// or `".."` (data style); `,,` is an empty field.
func scanVendorLine(line string) []string {
	var fields []string
	var buf strings.Builder

	i := 0
	n := len(line)
	for i <= n {
		if i == n {
			fields = append(fields, buf.String())
			break
		}

		switch {
		case buf.Len() == 0 && strings.HasPrefix(line[i:], `""`) && !strings.HasPrefix(line[i:], `"""`):
			// Doubled-quote wrapper: consume until the closing `""`.
			i += 2
			end := strings.Index(line[i:], `""`)
			if end < 0 {
				buf.WriteString(line[i:])
				i = n
				continue
			}
			buf.WriteString(line[i : i+end])
			i += end + 2
		case buf.Len() == 0 && i < n && line[i] == '"':
			// Standard quoted field; doubled quotes inside are literals.
			i++
			for i < n {
				if line[i] == '"' {
					if i+1 < n && line[i+1] == '"' {
						buf.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				buf.WriteByte(line[i])
				i++
			}
		case line[i] == ',':
			fields = append(fields, buf.String())
			buf.Reset()
			i++
		default:
			buf.WriteByte(line[i])
			i++
		}
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func splitLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func firstLine(data []byte) string {
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		data = data[:idx]
	}
	return strings.TrimRight(string(data), "\r")
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
