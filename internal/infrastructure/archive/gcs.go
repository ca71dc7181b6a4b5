package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// WriterFunc opens a writer for one object. The object is committed when
// the writer is closed without error.
type WriterFunc func(ctx context.Context, bucket, key string) io.WriteCloser

// GCS archives transcripts to a Google Cloud Storage bucket.
type GCS struct {
	newWriter WriterFunc
	bucket    string
	prefix    string
}

// NewGCS creates a GCS archiver using cfg.CredentialsFile or application
// default credentials.
func NewGCS(ctx context.Context, cfg Config) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile)) //nolint:staticcheck // Deprecated but no alternative yet
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return NewGCSWithWriter(func(ctx context.Context, bucket, key string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = "text/plain; charset=utf-8"
		return w
	}, cfg.Bucket, cfg.Prefix), nil
}

// NewGCSWithWriter creates a GCS archiver over an existing writer factory.
func NewGCSWithWriter(newWriter WriterFunc, bucket, prefix string) *GCS {
	return &GCS{newWriter: newWriter, bucket: bucket, prefix: prefix}
}

func (a *GCS) Archive(ctx context.Context, key string, body []byte) (string, error) {
	key = joinKey(a.prefix, key)
	w := a.newWriter(ctx, a.bucket, key)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}
