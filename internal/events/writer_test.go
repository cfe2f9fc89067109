package events_test

import (
	"context"
	"testing"
	"time"

	"suretakip/internal/db"
	"suretakip/internal/events"
	"suretakip/internal/migrate"
)

func newTestWriter(t *testing.T) events.Writer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return events.Writer{
		DB:  conn,
		Now: func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
}

func appendEvent(t *testing.T, w events.Writer, evtType, entityID, actor string) {
	t.Helper()
	ctx := context.Background()
	tx, err := w.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Append(ctx, tx, evtType, "document", entityID, actor, events.EventPayload{"n": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestLatest(t *testing.T) {
	w := newTestWriter(t)
	appendEvent(t, w, "document.replaced", "master", "ali@firma.com")
	appendEvent(t, w, "user.updated", "", "ayse@firma.com")
	appendEvent(t, w, "document.replaced", "master", "ali@firma.com")

	evts, err := w.Latest(context.Background(), 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("limit not applied: %d events", len(evts))
	}
	if evts[0].Type != "document.replaced" || evts[1].Type != "user.updated" {
		t.Fatalf("order wrong: %s then %s", evts[0].Type, evts[1].Type)
	}
	if evts[1].EntityID != "" {
		t.Fatalf("null entity id not folded: %q", evts[1].EntityID)
	}
	if evts[0].TS != "2025-03-15T10:00:00Z" {
		t.Fatalf("ts: %q", evts[0].TS)
	}

	// Zero limit falls back to a sane page size.
	evts, err = w.Latest(context.Background(), 0)
	if err != nil || len(evts) != 3 {
		t.Fatalf("default limit: %d events, err %v", len(evts), err)
	}
}
