// Package backup provides S3-compatible upload of database snapshots.
// When S3 is not configured (empty bucket), the NoopUploader is used and
// all upload operations are skipped, keeping backups local-only.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/vitals/internal/config"
)

// ErrNotConfigured is returned when S3 backup storage is not configured.
var ErrNotConfigured = errors.New("backup storage not configured")

// Uploader uploads database snapshots.
type Uploader interface {
	// Upload stores the snapshot file at filePath under an object key
	// derived from userID and the snapshot timestamp. Returns the object
	// key it wrote, or ErrNotConfigured in local-only mode.
	Upload(ctx context.Context, userID int64, filePath string) (string, error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
// This interface enables testing with mock implementations.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, opts)
	return err
}

// S3Uploader uploads snapshots to S3-compatible storage.
type S3Uploader struct {
	client s3Client
	bucket string
	prefix string

	// now is swappable in tests for deterministic object keys.
	now func() time.Time
}

// Upload uploads the snapshot file at filePath.
func (u *S3Uploader) Upload(ctx context.Context, userID int64, filePath string) (string, error) {
	key := u.objectKey(userID)
	if err := u.client.FPutObject(ctx, u.bucket, key, filePath); err != nil {
		return "", fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return key, nil
}

// objectKey convention: {prefix}/{user_id}/vitals-{timestamp}.db
func (u *S3Uploader) objectKey(userID int64) string {
	name := fmt.Sprintf("%d/vitals-%s.db", userID, u.now().UTC().Format("20060102T150405Z"))
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload returns ErrNotConfigured; the caller keeps the local snapshot.
func (u *NoopUploader) Upload(ctx context.Context, userID int64, filePath string) (string, error) {
	return "", ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.BackupConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}
