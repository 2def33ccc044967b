package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"arena/internal/common/storage"
	appErr "arena/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

// Archiver keeps diagnostic logs captured before a restart.
type Archiver interface {
	// Archive stores logs and returns the key they were written under.
	Archive(ctx context.Context, service string, at time.Time, logs []byte) (string, error)
}

// ObjectArchiver compresses logs with zstd and uploads them to object storage.
type ObjectArchiver struct {
	store  storage.ObjectStorage
	bucket string
	prefix string
}

func NewObjectArchiver(store storage.ObjectStorage, bucket, prefix string) *ObjectArchiver {
	if prefix == "" {
		prefix = "restarts"
	}
	return &ObjectArchiver{store: store, bucket: bucket, prefix: prefix}
}

func (a *ObjectArchiver) Archive(ctx context.Context, service string, at time.Time, logs []byte) (string, error) {
	payload, err := compressLogs(logs)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s.log.zst", a.prefix, service, at.UTC().Format("20060102T150405.000Z"))
	if err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), "application/zstd"); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "archive %s: %v", key, err)
	}
	return key, nil
}

func compressLogs(logs []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(logs, nil), nil
}
