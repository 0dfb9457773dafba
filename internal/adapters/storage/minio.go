package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"zawj-chat/internal/config"
	"zawj-chat/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient resolves attachment keys to short-lived download URLs.
type MinIOClient struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinIOClient(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	log.Info("Successfully connected to MinIO", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinIOClient{client: client, bucket: cfg.Bucket, expiry: cfg.PresignExpiry}, nil
}

// PresignGet returns a GET URL for key valid until the returned time.
func (m *MinIOClient) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	expiry := m.expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), time.Now().Add(expiry), nil
}
