// Package status derives the display state of a deadline.
//
// The source history carried two rival rules for past-and-still-pending
// deadlines: an earlier one kept a distinct "overdue" bucket, a later one
// folded past items into "completed". The later rule is authoritative here:
// Classify never returns an overdue bucket, and a past deadline classifies
// as completed for display purposes regardless of the stored flag. The
// stored flag itself is never mutated; the passed deadline stays visible
// through RemainingText, which reads "N gün gecikti" for such items.
package status

import (
	"fmt"
	"time"

	"suretakip/internal/dates"
)

// Status is a derived display bucket, not a stored field.
type Status string

const (
	Completed Status = "completed"
	ThisWeek  Status = "this-week"
	ThisMonth Status = "this-month"
	Upcoming  Status = "upcoming"
)

// Stored status flags as persisted on records.
const (
	StoredPending   = "pending"
	StoredActive    = "active"
	StoredPaused    = "paused"
	StoredCompleted = "completed"
)

// Classify maps a deadline plus the stored flag to a display bucket.
// A stored completed flag or a deadline strictly before today's local
// midnight yields Completed; otherwise the deadline lands in the current
// Monday–Sunday week, the current calendar month, or Upcoming.
func Classify(now, deadline time.Time, stored string) Status {
	if stored == StoredCompleted {
		return Completed
	}
	today := dates.StartOfDay(now)
	day := dates.StartOfDay(deadline)
	if day.Before(today) {
		return Completed
	}
	weekStart, weekEnd := weekBounds(now)
	if !day.Before(weekStart) && day.Before(weekEnd) {
		return ThisWeek
	}
	if day.Year() == today.Year() && day.Month() == today.Month() {
		return ThisMonth
	}
	return Upcoming
}

// weekBounds returns the local midnights bracketing the current
// Monday–Sunday calendar week: [monday, next monday).
func weekBounds(now time.Time) (time.Time, time.Time) {
	today := dates.StartOfDay(now)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -sinceMonday)
	return monday, monday.AddDate(0, 0, 7)
}

// RemainingText renders the human-readable remaining time in Turkish.
func RemainingText(now, deadline time.Time, stored string) string {
	if stored == StoredCompleted {
		return "Tamamlandı"
	}
	days := dates.DaysUntil(now, deadline)
	switch {
	case days < 0:
		return fmt.Sprintf("%d gün gecikti", -days)
	case days == 0:
		return "Bugün!"
	case days == 1:
		return "Yarın"
	}
	switch Classify(now, deadline, stored) {
	case ThisWeek:
		return fmt.Sprintf("%d gün kaldı (Bu Hafta)", days)
	case ThisMonth:
		return fmt.Sprintf("%d gün kaldı (Bu Ay)", days)
	default:
		return fmt.Sprintf("%d gün kaldı", days)
	}
}

// Label returns the badge text used in list views.
func Label(s Status) string {
	switch s {
	case Completed:
		return "✅ Tamamlandı"
	case ThisWeek:
		return "🟠 Bu Hafta"
	case ThisMonth:
		return "🟡 Bu Ay"
	default:
		return "🟢 Yaklaşan"
	}
}
