// Package notify builds the deadline digest shown by the digest command:
// what is due today and what is coming up this week.
package notify

import (
	"fmt"
	"strings"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/status"
)

// upcomingWindowDays is how far ahead the digest looks.
const upcomingWindowDays = 7

// Digest groups pending obligations by urgency.
type Digest struct {
	DueToday []domain.Obligation
	Upcoming []domain.Obligation
	Overdue  []domain.Obligation
}

// Empty reports whether there is nothing to announce.
func (d Digest) Empty() bool {
	return len(d.DueToday) == 0 && len(d.Upcoming) == 0 && len(d.Overdue) == 0
}

// Build scans pending obligations and buckets them relative to now.
// Completed obligations never appear in a digest.
func Build(now time.Time, obligations []domain.Obligation) Digest {
	var d Digest
	for _, o := range obligations {
		if o.Status == status.StoredCompleted {
			continue
		}
		days := dates.DaysUntil(now, o.Deadline.Time)
		switch {
		case days < 0:
			d.Overdue = append(d.Overdue, o)
		case days == 0:
			d.DueToday = append(d.DueToday, o)
		case days <= upcomingWindowDays:
			d.Upcoming = append(d.Upcoming, o)
		}
	}
	return d
}

// Render formats the digest as plain text for the terminal or a chat
// message body.
func (d Digest) Render(now time.Time) string {
	if d.Empty() {
		return "Önümüzdeki hafta için bekleyen yükümlülük yok."
	}
	var sb strings.Builder
	section := func(title string, items []domain.Obligation) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s\n", title)
		for _, o := range items {
			fmt.Fprintf(&sb, "  - %s | %s | %s (%s)\n",
				o.ProjectName,
				o.ObligationType,
				dates.Format(o.Deadline.Time),
				status.RemainingText(now, o.Deadline.Time, o.Status))
		}
	}
	section("⚠️ Gecikenler", d.Overdue)
	section("🔔 Bugün son gün", d.DueToday)
	section(fmt.Sprintf("📅 Önümüzdeki %d gün", upcomingWindowDays), d.Upcoming)
	return strings.TrimRight(sb.String(), "\n")
}
