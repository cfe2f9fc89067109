// Package dates centralizes the tolerant date handling shared by the sync
// bridge, the importer and the CLI. Remote documents arrive with dates in
// half a dozen shapes (native timestamp objects, ISO strings, Turkish
// DD.MM.YYYY strings, spreadsheet serial days, epoch milliseconds); every
// decode boundary goes through Convert so the rest of the code only ever
// sees time.Time.
package dates

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// serialEpoch is the spreadsheet day-zero (1899-12-30).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const dayMillis = 24 * 60 * 60 * 1000

var (
	dotPattern   = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	slashPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoPattern   = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// Convert decodes any supported date representation. It accepts time.Time,
// Flexible, an object with integer seconds/nanoseconds fields, ISO-8601
// strings with or without fractional seconds, DD.MM.YYYY, DD/MM/YYYY,
// YYYY-MM-DD, spreadsheet serial day numbers and epoch milliseconds.
// The second return is false when nothing matched.
func Convert(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, true
	case Flexible:
		return x.Time, !x.IsZero()
	case *Flexible:
		if x == nil {
			return time.Time{}, false
		}
		return x.Time, !x.IsZero()
	case string:
		return ParseString(x)
	case float64:
		return fromNumber(x), true
	case int:
		return fromNumber(float64(x)), true
	case int64:
		return fromNumber(float64(x)), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromNumber(f), true
	case map[string]any:
		return fromTimestampObject(x)
	}
	return time.Time{}, false
}

// ConvertOrNow applies the lossy-but-non-fatal policy: unparseable input
// decodes to the current moment instead of failing the whole document.
func ConvertOrNow(v any, now func() time.Time) time.Time {
	if t, ok := Convert(v); ok {
		return t
	}
	if now == nil {
		now = time.Now
	}
	return now()
}

// ParseString tries the ISO formats first, then the regional patterns.
func ParseString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := dotPattern.FindStringSubmatch(s); m != nil {
		return dmy(m[1], m[2], m[3]), true
	}
	if m := slashPattern.FindStringSubmatch(s); m != nil {
		return dmy(m[1], m[2], m[3]), true
	}
	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return dmy(m[3], m[2], m[1]), true
	}
	// Bare numbers show up when spreadsheet cells lose their date type.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromNumber(f), true
	}
	return time.Time{}, false
}

func dmy(day, month, year string) time.Time {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
}

// fromNumber disambiguates spreadsheet serial days from epoch milliseconds
// by magnitude: serial days stay below ~110000 until the 22nd century while
// epoch milliseconds passed 10^11 in 1973.
func fromNumber(f float64) time.Time {
	if f >= 1e11 {
		return time.UnixMilli(int64(f))
	}
	return serialEpoch.Add(time.Duration(f * float64(dayMillis) * float64(time.Millisecond)))
}

func fromTimestampObject(m map[string]any) (time.Time, bool) {
	secs, ok := numberField(m, "seconds")
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := numberField(m, "nanoseconds")
	return time.Unix(int64(secs), int64(nanos)), true
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// Validate parses v and rejects dates outside the plausible 1900–2100 window.
func Validate(v any) (time.Time, error) {
	t, ok := Convert(v)
	if !ok {
		return time.Time{}, fmt.Errorf("geçersiz tarih formatı: %v", v)
	}
	if y := t.Year(); y < 1900 || y > 2100 {
		return time.Time{}, fmt.Errorf("tarih mantıklı aralıkta değil: %d", y)
	}
	return t, nil
}

// StartOfDay truncates to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil returns the number of whole days between now and the target,
// both truncated to local midnight, with the difference rounded up. The
// ceiling matters: it is what makes a deadline later today read as
// "Bugün!" and one minute past tomorrow's midnight read as "Yarın".
func DaysUntil(now, target time.Time) int {
	diff := StartOfDay(target).Sub(StartOfDay(now)).Milliseconds()
	return int(math.Ceil(float64(diff) / float64(dayMillis)))
}

// Format renders DD.MM.YYYY, the display and export format throughout.
func Format(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

// SerialDay returns the spreadsheet serial day number for t's calendar day.
func SerialDay(t time.Time) float64 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return float64(midnight.Sub(serialEpoch).Milliseconds()) / float64(dayMillis)
}
