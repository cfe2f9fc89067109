// Package backup produces the manual disaster-recovery hard copy: a
// timestamped JSON file of obligations and jobs, optionally mirrored to
// S3-compatible storage. There is no restore path; the file exists so
// that losing the remote document is an inconvenience, not a catastrophe.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"suretakip/internal/domain"
)

// FormatVersion is bumped when the backup layout changes.
const FormatVersion = 1

// File is the backup document layout.
type File struct {
	Version    int     `json:"version"`
	ExportDate string  `json:"exportDate"`
	CreatedBy  string  `json:"createdBy"`
	Data       payload `json:"data"`
}

type payload struct {
	Obligations []domain.Obligation `json:"obligations"`
	Jobs        []domain.Job        `json:"jobs"`
}

// Write serializes a backup into dir and returns the file path.
func Write(dir string, obligations []domain.Obligation, jobs []domain.Job, createdBy string, now func() time.Time) (string, error) {
	if now == nil {
		now = time.Now
	}
	stamp := now()
	f := File{
		Version:    FormatVersion,
		ExportDate: stamp.UTC().Format(time.RFC3339),
		CreatedBy:  createdBy,
		Data:       payload{Obligations: obligations, Jobs: jobs},
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize backup: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("suretakip_yedek_%s.json", stamp.Format("2006-01-02_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}
