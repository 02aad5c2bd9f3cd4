package imagesource

import (
	"context"
	"fmt"
	"io"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore reads capture images from a MinIO or S3-compatible server.
type MinIOStore struct {
	client *minio.Client
}

// NewMinIOStore connects to the configured endpoint. It returns nil, nil when no endpoint is set.
func NewMinIOStore(cfg *config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStore{client: client}, nil
}

// GetObject downloads a whole object.
func (s *MinIOStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError(bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxImageBytes+1))
	if err != nil {
		return nil, objectError(bucket, key, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: object larger than %d bytes", ErrInvalidSource, maxImageBytes)
	}
	return data, nil
}

func objectError(bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: minio://%s/%s", ErrNotFound, bucket, key)
	}
	return fmt.Errorf("%w: minio://%s/%s: %v", ErrFetch, bucket, key, err)
}
