package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
)

func mhtmlDoc(tableHTML string) []byte {
	return []byte("MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/related; boundary=\"----=_Part_01\"\r\n" +
		"Content-Location: file:///report.htm\r\n" +
		"\r\n" +
		"------=_Part_01\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		tableHTML + "\r\n" +
		"------=_Part_01--\r\n")
}

func TestExtractMHTML_RowSpanInheritance(t *testing.T) {
	// Rows 2-4 omit the practitioner and date cells, simulating a row span
	// of 3 in the source table. They must inherit row 1's values.
	table := `<table>
		<tr><th>Practitioner</th><th>Date</th><th>Patient</th><th>Charge Type</th><th>Charge Desc</th><th>Qty</th><th>Calculated Payment (Line)</th></tr>
		<tr><td rowspan=3>Dr. Smith</td><td rowspan=3>1/13/25</td><td>Jane Doe</td><td>Procedure</td><td>Saline 1L</td><td>1</td><td>$45.00</td></tr>
		<tr><td>John Roe</td><td>Procedure</td><td>B12 Injection</td><td>1</td><td>$25.00</td></tr>
		<tr><td>Kim Poe</td><td>Procedure</td><td>Glutathione Push</td><td>1</td><td>$35.00</td></tr>
		<tr><td>Dr. Jones</td><td>1/14/25</td><td>Lee Moe</td><td>Procedure</td><td>Energy</td><td>1</td><td>$55.00</td></tr>
	</table>`

	rs, err := extractMHTML(mhtmlDoc(table))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 4)
	assert.Equal(t, sniffer.FormatMHTML, rs.Source)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Dr. Smith", rs.Rows[i][0], "row %d practitioner", i)
		assert.Equal(t, "1/13/25", rs.Rows[i][1], "row %d date", i)
	}
	assert.Equal(t, "John Roe", rs.Rows[1][2])
	assert.Equal(t, "Glutathione Push", rs.Rows[2][4])

	assert.Equal(t, "Dr. Jones", rs.Rows[3][0])
	assert.Equal(t, "1/14/25", rs.Rows[3][1])
}

func TestExtractMHTML_QuotedPrintableAndEntities(t *testing.T) {
	table := `<table>
		<tr><td>Dr. A</td><td>1/13/25</td><td>Doe,=20Jane</td><td>Procedure</td><td>Myers&#39; Cocktail&nbsp;</td><td>1</td><td>$125.00</td></tr>
	</table>`

	rs, err := extractMHTML(mhtmlDoc(table))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "Doe, Jane", rs.Rows[0][2])
	assert.Equal(t, "Myers' Cocktail", rs.Rows[0][4])
}

func TestExtractMHTML_UnknownWidthAlignsByCurrency(t *testing.T) {
	// A 4-cell row matches no known width; the trailing currency token
	// anchors the payment column and the leading cells are inherited.
	table := `<table>
		<tr><td>Dr. A</td><td>1/13/25</td><td>Jane Doe</td><td>Procedure</td><td>Saline 1L</td><td>1</td><td>$45.00</td></tr>
		<tr><td>Procedure</td><td>Hydration</td><td>1</td><td>$60.00</td></tr>
	</table>`

	rs, err := extractMHTML(mhtmlDoc(table))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)

	assert.Equal(t, "Dr. A", rs.Rows[1][0])
	assert.Equal(t, "1/13/25", rs.Rows[1][1])
	assert.Equal(t, "Hydration", rs.Rows[1][4])
	assert.Equal(t, "$60.00", rs.Rows[1][6])
}

func TestExtractMHTML_RowWithoutCurrencyDropped(t *testing.T) {
	table := `<table>
		<tr><td>Dr. A</td><td>1/13/25</td><td>Jane Doe</td><td>Procedure</td><td>Saline 1L</td><td>1</td><td>$45.00</td></tr>
		<tr><td>stray</td><td>trailer</td></tr>
	</table>`

	rs, err := extractMHTML(mhtmlDoc(table))
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 1)
	assert.Equal(t, 1, rs.Dropped)
}

func TestExtractMHTML_NoTable(t *testing.T) {
	_, err := extractMHTML(mhtmlDoc("<p>no table here</p>"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "table"))
}
