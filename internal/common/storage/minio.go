package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig points at an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

func (c MinIOConfig) validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.AccessKey == "" {
		missing = append(missing, "accessKey")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secretKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// MinIOStorage stores objects through the low-level minio Core client.
type MinIOStorage struct {
	core   *minio.Core
	region string
}

func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio %s: %w", cfg.Endpoint, err)
	}
	return &MinIOStorage{core: core, region: cfg.Region}, nil
}

func (s *MinIOStorage) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return errors.New("bucket name is empty")
	}
	ok, err := s.core.BucketExists(ctx, bucket)
	switch {
	case err != nil:
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	case ok:
		return nil
	}
	err = s.core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *MinIOStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	if reader == nil || objectKey == "" {
		return errors.New("object key and reader are required")
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.core.PutObject(ctx, bucket, objectKey, reader, sizeBytes, "", "", opts); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, objectKey, err)
	}
	return nil
}
