package engine_test

import (
	"testing"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/engine"
	"suretakip/internal/status"
	"suretakip/internal/store"
)

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	st := store.New()
	st.Now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	eng := engine.New(st)
	eng.Now = st.Now
	return eng
}

func TestAddObligation(t *testing.T) {
	eng := newTestEngine(t)
	o, err := eng.AddObligation(engine.ObligationCreateOptions{
		ProjectName: "  Güneş GES ",
		Type:        "Çevre izni yenileme",
		Deadline:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if o.ID == "" || o.Status != status.StoredPending {
		t.Fatalf("unexpected record: %+v", o)
	}
	if o.ProjectName != "Güneş GES" {
		t.Fatalf("name not trimmed: %q", o.ProjectName)
	}
	if len(eng.Store.Obligations) != 1 {
		t.Fatalf("store not updated")
	}

	if _, err := eng.AddObligation(engine.ObligationCreateOptions{Deadline: time.Now()}); err == nil {
		t.Fatalf("expected missing project error")
	}
	if _, err := eng.AddObligation(engine.ObligationCreateOptions{ProjectName: "X"}); err == nil {
		t.Fatalf("expected missing deadline error")
	}
}

func TestToggleObligationStatus(t *testing.T) {
	eng := newTestEngine(t)
	o, _ := eng.AddObligation(engine.ObligationCreateOptions{
		ProjectName: "RES-1", Deadline: time.Now().AddDate(0, 1, 0),
	})
	s, err := eng.ToggleObligationStatus(o.ID)
	if err != nil || s != status.StoredCompleted {
		t.Fatalf("first toggle: %s %v", s, err)
	}
	s, err = eng.ToggleObligationStatus(o.ID)
	if err != nil || s != status.StoredPending {
		t.Fatalf("second toggle: %s %v", s, err)
	}
	if _, err := eng.ToggleObligationStatus("missing"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestCommentObligation(t *testing.T) {
	eng := newTestEngine(t)
	o, _ := eng.AddObligation(engine.ObligationCreateOptions{
		ProjectName: "RES-1", Deadline: time.Now().AddDate(0, 1, 0),
	})
	if err := eng.CommentObligation(o.ID, "ali@firma.com", "EPDK'ya yazı gönderildi"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	got, _ := eng.Store.GetObligation(o.ID)
	if len(got.Comments) != 1 || got.Comments[0].User != "ali@firma.com" {
		t.Fatalf("comment not recorded: %+v", got.Comments)
	}
	if err := eng.CommentObligation(o.ID, "ali@firma.com", "   "); err == nil {
		t.Fatalf("blank comment should be rejected")
	}
}

func TestCreateJobsCartesian(t *testing.T) {
	eng := newTestEngine(t)
	n, err := eng.CreateJobs(engine.JobForm{
		Title:     "Saha ölçümü",
		Projects:  []string{"GES-1", "GES-2"},
		Assignees: []string{"ali@firma.com", "ayse@firma.com"},
		Actor:     "sef@firma.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n != 4 || len(eng.Store.Jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", n)
	}
	seen := map[string]bool{}
	for _, j := range eng.Store.Jobs {
		seen[j.Project+"/"+j.Assignee] = true
		if j.Priority != domain.PriorityMedium {
			t.Fatalf("default priority: %s", j.Priority)
		}
		if len(j.History) != 1 || j.History[0].Action != domain.ActionCreated {
			t.Fatalf("missing created history: %+v", j.History)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("pairs not distinct: %v", seen)
	}
}

func TestCreateJobsValidation(t *testing.T) {
	eng := newTestEngine(t)
	cases := []engine.JobForm{
		{Projects: []string{"P"}, Assignees: []string{"a"}},
		{Title: "T", Assignees: []string{"a"}},
		{Title: "T", Projects: []string{"P"}},
	}
	for i, form := range cases {
		if _, err := eng.CreateJobs(form); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestObligationLinkDroppedOnMultiProject(t *testing.T) {
	eng := newTestEngine(t)
	single := eng.ExpandJobs(engine.JobForm{
		Title: "T", Projects: []string{"P1"}, Assignees: []string{"a"},
		RelatedObligationID: "o1", RelatedObligationLabel: "P1 - İzin",
	})
	if single[0].RelatedObligationID != "o1" {
		t.Fatalf("single project should keep the link")
	}
	multi := eng.ExpandJobs(engine.JobForm{
		Title: "T", Projects: []string{"P1", "P2"}, Assignees: []string{"a"},
		RelatedObligationID: "o1",
	})
	for _, j := range multi {
		if j.RelatedObligationID != "" {
			t.Fatalf("multi project should drop the link")
		}
	}
}

func TestToggleJobStatus(t *testing.T) {
	eng := newTestEngine(t)
	_, _ = eng.CreateJobs(engine.JobForm{
		Title: "T", Projects: []string{"P"}, Assignees: []string{"a"}, Actor: "a",
	})
	id := eng.Store.Jobs[0].ID

	completed, err := eng.ToggleJobStatus(id, "ali@firma.com")
	if err != nil || !completed {
		t.Fatalf("complete: %v", err)
	}
	j, _ := eng.Store.GetJob(id)
	if j.Status != status.StoredCompleted || j.CompletedAt == nil {
		t.Fatalf("completion not recorded: %+v", j)
	}

	completed, err = eng.ToggleJobStatus(id, "ali@firma.com")
	if err != nil || completed {
		t.Fatalf("reopen: %v", err)
	}
	j, _ = eng.Store.GetJob(id)
	if j.Status != status.StoredPending || j.CompletedAt != nil {
		t.Fatalf("reopen not recorded: %+v", j)
	}
	if len(j.History) != 3 {
		t.Fatalf("expected created+completed+reopened history, got %d", len(j.History))
	}
}

func TestDeleteJob(t *testing.T) {
	eng := newTestEngine(t)
	_, _ = eng.CreateJobs(engine.JobForm{Title: "T", Projects: []string{"P"}, Assignees: []string{"a"}})
	id := eng.Store.Jobs[0].ID
	if err := eng.DeleteJob(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := eng.DeleteJob(id); err == nil {
		t.Fatalf("expected not found on second delete")
	}
}

func TestMergeImportPreservesWork(t *testing.T) {
	eng := newTestEngine(t)
	deadline := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	existing, _ := eng.AddObligation(engine.ObligationCreateOptions{
		ProjectName: "GES-1", Type: "Çevre izni", Deadline: deadline,
	})
	_, _ = eng.ToggleObligationStatus(existing.ID)
	_ = eng.CommentObligation(existing.ID, "ali@firma.com", "dosya hazır")

	imported := []domain.Obligation{
		{
			ID: domain.NewID(), ProjectName: "ges-1", ObligationType: "çevre izni",
			Deadline: dates.At(deadline.Add(5 * time.Hour)),
			Status:   status.StoredPending, Notes: "güncel not",
		},
		{
			ID: domain.NewID(), ProjectName: "GES-2", ObligationType: "Lisans tadili",
			Deadline: dates.At(deadline), Status: status.StoredPending,
		},
	}
	result := eng.MergeImport(imported)
	if result.Total != 2 || result.Preserved != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	merged, ok := eng.Store.GetObligation(existing.ID)
	if !ok {
		t.Fatalf("matched row lost its id")
	}
	if merged.Status != status.StoredCompleted {
		t.Fatalf("completed flag not preserved")
	}
	if len(merged.Comments) != 1 {
		t.Fatalf("comments not preserved")
	}
	if merged.Notes != "güncel not" {
		t.Fatalf("imported fields should win: %q", merged.Notes)
	}
	if len(eng.Store.Obligations) != 2 {
		t.Fatalf("import should replace the collection")
	}
}

func TestUpsertProject(t *testing.T) {
	eng := newTestEngine(t)
	p, created, err := eng.UpsertProject(engine.ProjectUpsertOptions{
		Name: "GES-1", Company: "Enerji AŞ",
	})
	if err != nil || !created {
		t.Fatalf("create: %v", err)
	}
	updated, created, err := eng.UpsertProject(engine.ProjectUpsertOptions{
		Name: "ges-1", LicenseNo: "EPDK-123",
	})
	if err != nil || created {
		t.Fatalf("update should not create: %v", err)
	}
	if updated.ID != p.ID || updated.Company != "Enerji AŞ" || updated.LicenseNo != "EPDK-123" {
		t.Fatalf("merge wrong: %+v", updated)
	}
	if _, _, err := eng.UpsertProject(engine.ProjectUpsertOptions{}); err == nil {
		t.Fatalf("expected name error")
	}
}

func TestUpsertUser(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.UpsertUser(domain.AppUser{Email: "ali@firma.com", DisplayName: "Ali"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := eng.UpsertUser(domain.AppUser{Email: "ali@firma.com", DisplayName: "Ali Vural"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(eng.Store.Users) != 1 || eng.Store.Users[0].DisplayName != "Ali Vural" {
		t.Fatalf("upsert did not replace: %+v", eng.Store.Users)
	}
	if err := eng.UpsertUser(domain.AppUser{}); err == nil {
		t.Fatalf("expected email error")
	}
}
