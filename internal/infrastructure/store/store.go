// Package store persists deployment records. Every backend supports the
// same two operations: read a record and apply a merge patch to it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdeck/launchdeck/internal/domain/deployment"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnsupported is returned for an unknown store driver.
	ErrUnsupported = errors.New("store: unsupported driver")
)

// Document is a stored deployment record.
type Document map[string]any

// Store reads and merge-patches deployment records keyed by a stable ID.
// MergePatch creates the record if it does not exist. A nil value in a
// patch removes the field.
type Store interface {
	Get(ctx context.Context, id string) (Document, error)
	MergePatch(ctx context.Context, id string, patch map[string]any) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Path       string `mapstructure:"path"`
	Table      string `mapstructure:"table"`
	Collection string `mapstructure:"collection"`
	Project    string `mapstructure:"project"`
	Address    string `mapstructure:"address"`
	Region     string `mapstructure:"region"`
}

// DefaultTable is the table, collection or key prefix used when none is
// configured.
const DefaultTable = "deployment_records"

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path)
	case "firestore":
		return NewFirestore(ctx, cfg.Project, cfg.Collection)
	case "dynamodb":
		return NewDynamoDB(ctx, cfg.Region, cfg.Table)
	case "redis":
		return NewRedis(cfg.Address, cfg.Table)
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg.DSN, cfg.Table)
	case "mysql":
		return NewMySQL(ctx, cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Driver)
	}
}

// Merge applies patch to doc following JSON merge patch rules: nested
// objects are merged recursively, a nil value removes the key and any other
// value replaces it. doc is modified in place and returned.
func Merge(doc Document, patch map[string]any) Document {
	if doc == nil {
		doc = Document{}
	}
	for k, v := range patch {
		if v == nil {
			delete(doc, k)
			continue
		}
		if sub, ok := asObject(v); ok {
			existing, _ := asObject(doc[k])
			doc[k] = map[string]any(Merge(Document(existing), sub))
			continue
		}
		doc[k] = v
	}
	return doc
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	case deployment.Projection:
		return map[string]any(m), true
	}
	return nil, false
}

// normalize converts an arbitrary patch to plain JSON values.
func normalize(patch map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	return out, nil
}

// DecodeConfig converts a stored record into a deployment configuration.
func DecodeConfig(id string, doc Document) (*deployment.Config, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", id, err)
	}
	var cfg deployment.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	cfg.ID = id
	return &cfg, nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// tableName validates a SQL table name, which cannot be passed as a query
// parameter.
func tableName(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}
