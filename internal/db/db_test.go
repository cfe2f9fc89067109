package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"suretakip/internal/db"
)

func TestPath(t *testing.T) {
	if got := db.Path("/tmp/ws"); got != filepath.Join("/tmp/ws", ".suretakip", "suretakip.db") {
		t.Fatalf("path: %q", got)
	}
	if got := db.Path(""); got != filepath.Join(".", ".suretakip", "suretakip.db") {
		t.Fatalf("empty workspace path: %q", got)
	}
}

func TestOpenCreatesDataDir(t *testing.T) {
	ws := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".suretakip")); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
}
