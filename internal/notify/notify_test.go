package notify_test

import (
	"strings"
	"testing"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/notify"
	"suretakip/internal/status"
)

var now = time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)

func obligation(project string, deadline time.Time, stored string) domain.Obligation {
	return domain.Obligation{
		ID:             domain.NewID(),
		ProjectName:    project,
		ObligationType: "Çevre izni",
		Deadline:       dates.At(deadline),
		Status:         stored,
	}
}

func TestBuildBuckets(t *testing.T) {
	d := notify.Build(now, []domain.Obligation{
		obligation("Geciken", now.AddDate(0, 0, -2), status.StoredPending),
		obligation("Bugün", now, status.StoredPending),
		obligation("Yakın", now.AddDate(0, 0, 5), status.StoredPending),
		obligation("Uzak", now.AddDate(0, 1, 0), status.StoredPending),
		obligation("Bitmiş", now, status.StoredCompleted),
	})
	if len(d.Overdue) != 1 || d.Overdue[0].ProjectName != "Geciken" {
		t.Fatalf("overdue: %+v", d.Overdue)
	}
	if len(d.DueToday) != 1 || d.DueToday[0].ProjectName != "Bugün" {
		t.Fatalf("due today: %+v", d.DueToday)
	}
	if len(d.Upcoming) != 1 || d.Upcoming[0].ProjectName != "Yakın" {
		t.Fatalf("upcoming: %+v", d.Upcoming)
	}
}

func TestRenderEmpty(t *testing.T) {
	d := notify.Build(now, nil)
	if !d.Empty() {
		t.Fatalf("expected empty digest")
	}
	if got := d.Render(now); got != "Önümüzdeki hafta için bekleyen yükümlülük yok." {
		t.Fatalf("got %q", got)
	}
}

func TestRenderSections(t *testing.T) {
	d := notify.Build(now, []domain.Obligation{
		obligation("Geciken", now.AddDate(0, 0, -2), status.StoredPending),
		obligation("Bugün", now, status.StoredPending),
	})
	out := d.Render(now)
	if !strings.Contains(out, "⚠️ Gecikenler") {
		t.Fatalf("missing overdue section:\n%s", out)
	}
	if !strings.Contains(out, "🔔 Bugün son gün") {
		t.Fatalf("missing due-today section:\n%s", out)
	}
	if !strings.Contains(out, "2 gün gecikti") {
		t.Fatalf("missing remaining text:\n%s", out)
	}
	if strings.Contains(out, "📅") {
		t.Fatalf("empty upcoming section rendered:\n%s", out)
	}
}
