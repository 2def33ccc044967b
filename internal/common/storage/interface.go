package storage

import (
	"context"
	"io"
)

// ObjectStorage is the write path the supervisor archives diagnostics through.
type ObjectStorage interface {
	// EnsureBucket creates bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads sizeBytes bytes read from reader.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error
}
