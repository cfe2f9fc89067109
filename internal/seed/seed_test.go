package seed_test

import (
	"testing"
	"time"

	"suretakip/internal/seed"
	"suretakip/internal/status"
)

func TestLoad(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	obligations, projects, err := seed.Load(now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(obligations) == 0 || len(projects) == 0 {
		t.Fatalf("empty dataset: %d obligations, %d projects", len(obligations), len(projects))
	}
	seen := map[string]bool{}
	for _, o := range obligations {
		if o.ID == "" || seen[o.ID] {
			t.Fatalf("bad or duplicate id: %q", o.ID)
		}
		seen[o.ID] = true
		if o.ProjectName == "" || o.Deadline.IsZero() {
			t.Fatalf("incomplete row: %+v", o)
		}
		if o.Status != status.StoredPending {
			t.Fatalf("seed rows start pending, got %s", o.Status)
		}
		if !o.CreatedAt.Equal(now()) {
			t.Fatalf("createdAt should carry the load stamp")
		}
	}
}
