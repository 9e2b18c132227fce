package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

func TestExtractQuotedDelimited(t *testing.T) {
	data := []byte("\"Date\",\"Patient\",\"Charge Desc\",\"Amount\"\n" +
		"\"1/13/25\",\"Doe, Jane\",\"Saline 1L (Member)\",\"$45.00\"\n" +
		"\"1/14/25\",\"Roe, John\",\"He said \"\"hi\"\"\",\"$25.00\"\n" +
		"\n" +
		"stray trailer line\n")

	rs, err := extractQuotedDelimited(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Patient", "Charge Desc", "Amount"}, rs.Headers)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "Doe, Jane", rs.Rows[0][1])
	assert.Equal(t, `He said "hi"`, rs.Rows[1][2])
	assert.Equal(t, 1, rs.Dropped)
}

func TestExtractQuotedDelimited_StripsByteOrderMark(t *testing.T) {
	data := []byte("\uFEFFDate,Patient,Amount\n1/13/25,Jane Doe,$45.00\n")

	rs, err := extractQuotedDelimited(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Patient", "Amount"}, rs.Headers)
	require.Len(t, rs.Rows, 1)
}

func TestExtractVendorDelimited_StripsByteOrderMark(t *testing.T) {
	data := []byte("\uFEFF" + `""Date"",""Patient""` + "\n" + `"1/13/25","Jane Doe"` + "\n")

	rs, err := extractVendorDelimited(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Patient"}, rs.Headers)
	require.Len(t, rs.Rows, 1)
}

func TestExtractVendorDelimited(t *testing.T) {
	data := []byte(`""Date"",""Patient"",""Charge Desc"",""Amount""` + "\n" +
		`"1/13/25","Doe, Jane","Saline 1L","$45.00"` + "\n" +
		`"1/14/25",,"B12 Injection","$25.00"` + "\n")

	rs, err := extractVendorDelimited(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Patient", "Charge Desc", "Amount"}, rs.Headers)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "Doe, Jane", rs.Rows[0][1])
	// `,,` is an empty field, not a separator glitch.
	assert.Equal(t, "", rs.Rows[1][1])
	assert.Equal(t, "B12 Injection", rs.Rows[1][2])
}

func TestScanVendorLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "doubled quote header",
			line: `""Date"",""Patient"",""Amount""`,
			want: []string{"Date", "Patient", "Amount"},
		},
		{
			name: "standard quoted with comma inside",
			line: `"1/13/25","Doe, Jane","$45.00"`,
			want: []string{"1/13/25", "Doe, Jane", "$45.00"},
		},
		{
			name: "escaped quotes inside standard field",
			line: `"a","he said ""hi""","c"`,
			want: []string{"a", `he said "hi"`, "c"},
		},
		{
			name: "empty fields",
			line: `a,,c`,
			want: []string{"a", "", "c"},
		},
		{
			name: "bare fields",
			line: `1/13/25,Jane,45.00`,
			want: []string{"1/13/25", "Jane", "45.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanVendorLine(tt.line))
		})
	}
}

func TestExtractUTF16(t *testing.T) {
	plain := "\"Date\",\"Patient\",\"Amount\"\r\n\"1/13/25\",\"Jane Doe\",\"$45.00\"\r\n"
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.Bytes(encoder, []byte(plain))
	require.NoError(t, err)

	rs, err := extractUTF16(encoded)
	require.NoError(t, err)

	assert.Equal(t, sniffer.FormatUTF16Delimited, rs.Source)
	assert.Equal(t, []string{"Date", "Patient", "Amount"}, rs.Headers)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "Jane Doe", rs.Rows[0][1])
}

func TestExtractUTF16_VendorDialect(t *testing.T) {
	plain := `""Date"",""Patient""` + "\r\n" + `"1/13/25","Jane Doe"` + "\r\n"
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.Bytes(encoder, []byte(plain))
	require.NoError(t, err)

	rs, err := extractUTF16(encoded)
	require.NoError(t, err)

	assert.Equal(t, sniffer.FormatUTF16Delimited, rs.Source)
	assert.Equal(t, []string{"Date", "Patient"}, rs.Headers)
	require.Len(t, rs.Rows, 1)
}

func TestExtract_UnknownFormat(t *testing.T) {
	_, err := Extract([]byte("data"), "nonsense", Options{})
	assert.ErrorIs(t, err, sniffer.ErrUnrecognizedFormat)
}
