// Package db opens the workspace SQLite database behind `st serve` and
// the server admin commands. Data lives under <workspace>/.suretakip/.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDir  = ".suretakip"
	fileName = "suretakip.db"
)

type Config struct {
	Workspace string
}

// Path returns the database file location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, fileName)
}

// EnsureWorkspace creates the workspace data directory when missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the database with foreign keys on and a busy timeout so a
// concurrent admin command does not fail fast against a running server.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := "file:" + Path(cfg.Workspace) + "?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	return sql.Open("sqlite", dsn)
}
