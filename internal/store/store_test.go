package store_test

import (
	"testing"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	s.Now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestSetCollectionsTouchesLastUpdate(t *testing.T) {
	s := newStore(t)
	if !s.LastUpdate.IsZero() {
		t.Fatalf("fresh store should carry no stamp")
	}
	s.SetObligations([]domain.Obligation{{ID: "o1"}})
	if s.LastUpdate.IsZero() {
		t.Fatalf("SetObligations did not touch LastUpdate")
	}
}

func TestUpdateObligationStampsUpdatedAt(t *testing.T) {
	s := newStore(t)
	s.SetObligations([]domain.Obligation{{ID: "o1", Status: "pending"}})
	ok := s.UpdateObligation("o1", func(o *domain.Obligation) {
		o.Status = "completed"
	})
	if !ok {
		t.Fatalf("expected update to land")
	}
	got, _ := s.GetObligation("o1")
	if got.Status != "completed" {
		t.Fatalf("status not applied: %s", got.Status)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updatedAt not stamped")
	}
	if s.UpdateObligation("missing", func(*domain.Obligation) {}) {
		t.Fatalf("unknown id should report false")
	}
}

func TestDeleteJob(t *testing.T) {
	s := newStore(t)
	s.SetJobs([]domain.Job{{ID: "j1"}, {ID: "j2"}})
	if !s.DeleteJob("j1") {
		t.Fatalf("expected removal")
	}
	if len(s.Jobs) != 1 || s.Jobs[0].ID != "j2" {
		t.Fatalf("wrong survivor set: %+v", s.Jobs)
	}
	if s.DeleteJob("j1") {
		t.Fatalf("second delete should report false")
	}
	// A delete that removed nothing must not advance the mutation stamp.
	stamp := s.LastUpdate
	if s.DeleteJob("missing") {
		t.Fatalf("unknown id should report false")
	}
	if !s.LastUpdate.Equal(stamp) {
		t.Fatalf("no-op delete moved lastUpdate: %v -> %v", stamp, s.LastUpdate)
	}
}

func TestGetProjectByNameIsCaseInsensitive(t *testing.T) {
	s := newStore(t)
	s.SetProjects([]domain.Project{{ID: "p1", Name: "Güneş GES"}})
	if _, ok := s.GetProjectByName("güneş ges"); !ok {
		t.Fatalf("case-insensitive lookup failed")
	}
	if _, ok := s.GetProjectByName(""); ok {
		t.Fatalf("empty name should not match")
	}
}

func TestGetUserNameFallbacks(t *testing.T) {
	s := newStore(t)
	s.SetUsers([]domain.AppUser{
		{Email: "ayse@firma.com", DisplayName: "Ayşe Yılmaz", LastUpdated: dates.At(time.Now())},
		{Email: "blank@firma.com"},
	})
	if got := s.GetUserName("ayse@firma.com"); got != "Ayşe Yılmaz" {
		t.Fatalf("got %q", got)
	}
	if got := s.GetUserName("blank@firma.com"); got != "blank" {
		t.Fatalf("local-part fallback: got %q", got)
	}
	if got := s.GetUserName(""); got != store.UnknownUser {
		t.Fatalf("empty email: got %q", got)
	}
}

func TestNotifyRefresh(t *testing.T) {
	s := newStore(t)
	fired := 0
	s.OnRefresh(func() { fired++ })
	s.NotifyRefresh()
	s.NotifyRefresh()
	if fired != 2 {
		t.Fatalf("expected 2 callbacks, got %d", fired)
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	s.SetObligations([]domain.Obligation{{ID: "o1"}})
	s.SetJobs([]domain.Job{{ID: "j1"}})
	s.Clear()
	if len(s.Obligations) != 0 || len(s.Jobs) != 0 || !s.LastUpdate.IsZero() {
		t.Fatalf("clear left data behind")
	}
}
