// Package archive uploads deployment log transcripts to object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrUnsupported is returned for an unknown archive driver.
var ErrUnsupported = errors.New("archive: unsupported driver")

// Archiver stores a transcript under key and returns its location.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) (string, error)
}

// Config selects and configures an archive backend. An empty driver
// disables archiving.
type Config struct {
	Driver    string `mapstructure:"driver"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Profile selects a shared AWS config profile for the s3 driver.
	Profile string `mapstructure:"profile"`
	// CredentialsFile is a service account key for the gcs driver.
	// Application default credentials are used when empty.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// New creates the archiver selected by cfg.Driver. It returns nil, nil when
// archiving is disabled.
func New(ctx context.Context, cfg Config) (Archiver, error) {
	if cfg.Driver != "" && cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinIO(cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Driver)
	}
}

// Key returns the object key of a transcript for a record, e.g.
// "logs/rec-1/20260102T150405Z.log".
func Key(prefix, recordID string, at time.Time) string {
	name := at.UTC().Format("20060102T150405Z") + ".log"
	return path.Join(prefix, recordID, name)
}
