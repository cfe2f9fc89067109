package backup

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured is returned when off-site backup storage is not set up.
var ErrNotConfigured = errors.New("backup storage not configured")

// Uploader mirrors a backup file off-site.
type Uploader interface {
	Upload(ctx context.Context, filePath string) error
}

// S3Config holds the S3-compatible target. An empty bucket disables
// uploading.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// NewUploader returns an S3 uploader, or the no-op uploader when no
// bucket is configured so local-only setups need no special casing.
func NewUploader(cfg S3Config) (Uploader, error) {
	if cfg.Bucket == "" {
		return NoopUploader{}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// S3Uploader copies backups to S3-compatible storage.
type S3Uploader struct {
	client *minio.Client
	bucket string
	prefix string
}

// Upload mirrors the file under <prefix>/<basename>.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	key := path.Join(u.prefix, path.Base(filePath))
	_, err := u.client.FPutObject(ctx, u.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload backup to S3: %w", err)
	}
	return nil
}

// NoopUploader skips uploading; used when S3 is not configured.
type NoopUploader struct{}

// Upload reports the missing configuration.
func (NoopUploader) Upload(context.Context, string) error { return ErrNotConfigured }
