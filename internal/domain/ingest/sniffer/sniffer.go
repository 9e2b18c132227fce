// Package sniffer classifies uploaded billing exports by their on-disk format.
// The clinic's billing system emits the same report as UTF-16 delimited text,
// vendor-quoted CSV, an MHTML page mislabeled .xls, or a genuine workbook,
// depending on which export button was used.
package sniffer

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// Format identifies the physical layout of an uploaded export file.
type Format string

const (
	FormatUTF16Delimited  Format = "utf16_delimited"
	FormatMHTML           Format = "mhtml"
	FormatQuotedDelimited Format = "quoted_delimited"
	FormatVendorDelimited Format = "vendor_delimited"
	FormatBinaryWorkbook  Format = "binary_workbook"
)

var (
	// ErrEmptyFile indicates a zero-length upload.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnrecognizedFormat indicates no signature matched and the workbook
	// reader also failed. Fatal for the file; the caller must re-export.
	ErrUnrecognizedFormat = errors.New("unrecognized file format")
)

// probeSize bounds how much of the file is decoded when looking for MIME
// multipart markers.
const probeSize = 8 * 1024

// Detect classifies raw upload bytes. The declared extension is advisory
// only: the billing system labels MHTML pages ".xls", so content wins.
func Detect(data []byte, ext string) (Format, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	if hasUTF16BOM(data) {
		return FormatUTF16Delimited, nil
	}

	probe := data
	if len(probe) > probeSize {
		probe = probe[:probeSize]
	}

	if looksLikeMHTML(probe) {
		return FormatMHTML, nil
	}

	if utf8.Valid(probe) && looksLikeText(probe) {
		firstLine := firstLineOf(probe)
		if hasVendorQuoting(firstLine) {
			return FormatVendorDelimited, nil
		}
		return FormatQuotedDelimited, nil
	}

	// Not text we understand; hand off to the spreadsheet reader. If that
	// reader fails too, the extractor reports ErrUnrecognizedFormat.
	return FormatBinaryWorkbook, nil
}

func hasUTF16BOM(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)
}

// looksLikeMHTML requires co-occurrence of the three MIME headers a browser
// writes when saving a page, so a CSV that merely mentions "Content-Type"
// in a description cell is not misclassified.
func looksLikeMHTML(probe []byte) bool {
	return bytes.Contains(probe, []byte("MIME-Version:")) &&
		bytes.Contains(probe, []byte("Content-Type:")) &&
		bytes.Contains(probe, []byte("Content-Location:"))
}

// hasVendorQuoting detects the vendor dialect whose header line wraps every
// field in doubled quotes: `""Date"",""Patient"",...`.
func hasVendorQuoting(line string) bool {
	line = strings.TrimPrefix(line, "\uFEFF")
	if !strings.HasPrefix(line, `""`) {
		return false
	}
	// Triple quote at the start means a standard quoted field beginning with
	// a literal quote, not the vendor wrapper.
	return !strings.HasPrefix(line, `"""`)
}

// looksLikeText rejects buffers with NUL or a high share of control bytes,
// which indicate a binary workbook rather than delimited text.
func looksLikeText(probe []byte) bool {
	if bytes.IndexByte(probe, 0x00) >= 0 {
		return false
	}
	control := 0
	for _, b := range probe {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			control++
		}
	}
	return control*20 < len(probe)
}

func firstLineOf(probe []byte) string {
	if idx := bytes.IndexByte(probe, '\n'); idx >= 0 {
		probe = probe[:idx]
	}
	return strings.TrimRight(string(probe), "\r")
}
