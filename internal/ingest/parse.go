package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is a header row plus data records, before canonicalization.
type Table struct {
	Delimiter rune
	Header    []string
	Records   [][]string
}

// ParseDelimited splits raw text into a header and non-blank data records.
// Text with no lines or a blank first line yields an empty Table.
func ParseDelimited(text string) Table {
	text = decodeText(text)
	delim := DetectDelimiter(text)
	t := Table{Delimiter: delim}

	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return t
	}
	first := strings.TrimRight(lines[0], "\r")
	if strings.TrimSpace(first) == "" {
		return t
	}
	t.Header = splitLine(first, delim)

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		t.Records = append(t.Records, splitLine(line, delim))
	}
	return t
}

// decodeText strips a leading byte-order mark and replaces invalid UTF-8.
func decodeText(text string) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.String(dec, text)
	if err != nil {
		return strings.TrimPrefix(text, "\ufeff")
	}
	return out
}

// splitLine splits one line honoring RFC-4180 quoting: a quoted cell may hold the
// delimiter and "" stands for an embedded quote. Cells come back trimmed and
// unquoted exactly once; quotes that are cell content survive.
func splitLine(line string, delim rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	// Leading-space trimming would also eat empty tab-separated cells.
	r.TrimLeadingSpace = delim != '\t'

	cells, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		cells = strings.Split(line, string(delim))
		for i, c := range cells {
			cells[i] = cleanCell(c)
		}
		return cells
	}
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// cleanCell trims whitespace and one layer of surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(strings.ReplaceAll(s[1:len(s)-1], `""`, `"`))
	}
	return s
}
