package backup_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"suretakip/internal/backup"
	"suretakip/internal/domain"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2025, 3, 15, 10, 30, 45, 0, time.UTC) }
	path, err := backup.Write(dir,
		[]domain.Obligation{{ID: "o1", ProjectName: "GES-1"}},
		[]domain.Job{{ID: "j1", Title: "Saha ölçümü"}},
		"ali@firma.com", now)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "suretakip_yedek_2025-03-15_103045.json" {
		t.Fatalf("filename: %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var f backup.File
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Version != backup.FormatVersion || f.CreatedBy != "ali@firma.com" {
		t.Fatalf("envelope: %+v", f)
	}
	if len(f.Data.Obligations) != 1 || len(f.Data.Jobs) != 1 {
		t.Fatalf("payload: %+v", f.Data)
	}
}

func TestWriteCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "yedekler", "2025")
	if _, err := backup.Write(dir, nil, nil, "", nil); err != nil {
		t.Fatalf("write into missing dir: %v", err)
	}
}

func TestUploaderWithoutBucket(t *testing.T) {
	up, err := backup.NewUploader(backup.S3Config{})
	if err != nil {
		t.Fatalf("noop uploader: %v", err)
	}
	if err := up.Upload(context.Background(), "/tmp/x.json"); !errors.Is(err, backup.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
