// Package importer reads obligation spreadsheets exported as CSV. Rows it
// cannot make sense of are skipped and counted, never fatal: one bad date
// must not sink a 300-row import.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/status"
)

// hyperlinkPattern extracts `=HYPERLINK("url","label")` formula cells.
var hyperlinkPattern = regexp.MustCompile(`(?i)=HYPERLINK\("([^"]+)"\s*,\s*"([^"]+)"\)`)

// headerKeywords mark a first row that is a header, not data.
var headerKeywords = []string{"proje", "santral", "ad"}

// completedWords are the status-column spellings that mean completed.
var completedWords = map[string]bool{
	"completed":  true,
	"tamamlandı": true,
	"tamamlandi": true,
	"tamam":      true,
}

// Result is the outcome of one import.
type Result struct {
	Obligations []domain.Obligation
	Skipped     int
}

// ParseCSV reads rows of Project / Type / Description / Deadline / Notes /
// optional Status. The project cell may be a HYPERLINK formula. Dates
// accept every format the platform tolerates, including spreadsheet
// serial numbers.
func ParseCSV(r io.Reader, now func() time.Time) (Result, error) {
	if now == nil {
		now = time.Now
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, err
	}
	data = stripBOM(data)
	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, err
	}

	start := 0
	if len(rows) > 0 && isHeaderRow(rows[0]) {
		start = 1
	}

	stamp := dates.At(now())
	var result Result
	for _, row := range rows[start:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		name, link := parseProjectCell(row[0])
		deadline, err := dates.Validate(cell(row, 3))
		if name == "" || err != nil {
			result.Skipped++
			continue
		}
		stored := status.StoredPending
		if completedWords[strings.ToLower(strings.TrimSpace(cell(row, 5)))] {
			stored = status.StoredCompleted
		}
		result.Obligations = append(result.Obligations, domain.Obligation{
			ID:                    domain.NewID(),
			ProjectName:           sanitize(name, 200),
			ProjectLink:           link,
			ObligationType:        sanitize(cell(row, 1), 200),
			ObligationDescription: sanitize(cell(row, 2), 500),
			Deadline:              dates.At(deadline),
			Notes:                 sanitize(cell(row, 4), 1000),
			Status:                stored,
			CreatedAt:             stamp,
			UpdatedAt:             stamp,
		})
	}
	return result, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(row[0])
	for _, kw := range headerKeywords {
		if strings.Contains(first, kw) {
			return true
		}
	}
	return false
}

func parseProjectCell(raw string) (name, link string) {
	if m := hyperlinkPattern.FindStringSubmatch(raw); m != nil {
		return m[2], m[1]
	}
	return strings.TrimSpace(raw), ""
}

// sanitize mirrors the form validation the other clients apply: trim,
// drop angle brackets, cap the length. The cap counts runes, not bytes,
// so Turkish text is never cut mid-character.
func sanitize(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return s
}

func stripBOM(b []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(b) >= 3 && bytes.Equal(b[:3], bom) {
		return b[3:]
	}
	return b
}

// sniffDelimiter picks semicolon when the first line is
// semicolon-separated, the common shape of Turkish-locale CSV exports.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
