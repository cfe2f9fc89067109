// Package cache is the device-local persistence adapter: one JSON file per
// collection under the workspace, plus lastUpdate and lastBackup scalars.
// It is a fallback copy, not the source of truth; reads never fail the
// caller and writes classify a full disk separately from other failures so
// the CLI can word the message accordingly.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"suretakip/internal/domain"
	"suretakip/internal/logger"
)

// Fixed storage keys, shared with the other clients' local caches.
const (
	KeyObligations = "obligations"
	KeyJobs        = "jobs"
	KeyProjects    = "projects"
	KeyLastUpdate  = "lastUpdate"
	KeyLastBackup  = "lastBackup"
)

// ErrStorageFull marks a write that failed because the device is out of
// space, as opposed to any other I/O failure.
var ErrStorageFull = errors.New("depolama alanı dolu")

// maxEntryBytes is the size guard threshold per entry; larger writes still
// succeed but are logged so a runaway collection is noticed early.
const maxEntryBytes = 5 << 20

// Cache reads and writes the workspace cache directory.
type Cache struct {
	dir string
	log logger.Logger
}

// Open ensures the cache directory exists under the workspace.
func Open(workspace string, log logger.Logger) (*Cache, error) {
	if workspace == "" {
		workspace = "."
	}
	if log == nil {
		log = logger.Nop()
	}
	dir := filepath.Join(workspace, ".suretakip", "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, log: log}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Write serializes v under the given key. A full disk comes back as
// ErrStorageFull.
func (c *Cache) Write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	if len(data) > maxEntryBytes {
		c.log.Warn("cache entry exceeds size guard",
			logger.String("key", key),
			logger.Float64("size_mb", float64(len(data))/(1<<20)))
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("%w: %s", ErrStorageFull, key)
		}
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Read deserializes the entry under key into out. A missing or corrupt
// entry reports false; corruption is logged, never surfaced.
func (c *Cache) Read(key string, out any) bool {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Error("cache read failed", logger.String("key", key), logger.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Error("cache entry corrupt", logger.String("key", key), logger.Error(err))
		return false
	}
	return true
}

// SaveCollections writes the three document collections plus the
// lastUpdate stamp. The first failure aborts the rest; a half-written
// cache is repaired on the next successful save.
func (c *Cache) SaveCollections(obligations []domain.Obligation, jobs []domain.Job, projects []domain.Project, lastUpdate time.Time) error {
	if err := c.Write(KeyObligations, obligations); err != nil {
		return err
	}
	if err := c.Write(KeyJobs, jobs); err != nil {
		return err
	}
	if err := c.Write(KeyProjects, projects); err != nil {
		return err
	}
	return c.Write(KeyLastUpdate, lastUpdate.UTC().Format(time.RFC3339Nano))
}

// LoadCollections reads whatever the cache holds. Missing entries come
// back empty.
func (c *Cache) LoadCollections() (obligations []domain.Obligation, jobs []domain.Job, projects []domain.Project, lastUpdate time.Time, ok bool) {
	okObligations := c.Read(KeyObligations, &obligations)
	okJobs := c.Read(KeyJobs, &jobs)
	okProjects := c.Read(KeyProjects, &projects)
	var stamp string
	if c.Read(KeyLastUpdate, &stamp) {
		if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			lastUpdate = t
		}
	}
	return obligations, jobs, projects, lastUpdate, okObligations || okJobs || okProjects
}

// LastBackup returns the timestamp of the most recent backup, zero when
// none was recorded.
func (c *Cache) LastBackup() time.Time {
	var stamp string
	if !c.Read(KeyLastBackup, &stamp) {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SetLastBackup records a completed backup.
func (c *Cache) SetLastBackup(t time.Time) error {
	return c.Write(KeyLastBackup, t.UTC().Format(time.RFC3339Nano))
}

// Clear removes every cache entry.
func (c *Cache) Clear() {
	for _, key := range []string{KeyObligations, KeyJobs, KeyProjects, KeyLastUpdate, KeyLastBackup} {
		_ = os.Remove(c.path(key))
	}
}
