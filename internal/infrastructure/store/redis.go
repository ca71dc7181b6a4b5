package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis stores each record as a hash with one JSON-encoded field per
// top-level record field.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis. address is either host:port or a redis:// URL.
func NewRedis(address, prefix string) (*Redis, error) {
	var opts *redis.Options
	if strings.HasPrefix(address, "redis://") || strings.HasPrefix(address, "rediss://") {
		parsed, err := redis.ParseURL(address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		if address == "" {
			address = "localhost:6379"
		}
		opts = &redis.Options{Addr: address}
	}
	if prefix == "" {
		prefix = DefaultTable
	}
	return &Redis{client: redis.NewClient(opts), prefix: prefix}, nil
}

func (r *Redis) key(id string) string {
	return r.prefix + ":" + id
}

func (r *Redis) Get(ctx context.Context, id string) (Document, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeHash(fields)
}

func (r *Redis) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}
	set, del, err := hashFields(normalized)
	if err != nil {
		return err
	}

	key := r.key(id)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(set) > 0 {
			pipe.HSet(ctx, key, set)
		}
		if len(del) > 0 {
			pipe.HDel(ctx, key, del...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to patch record %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// hashFields splits a patch into JSON-encoded fields to set and field names
// to delete.
func hashFields(patch map[string]any) (map[string]any, []string, error) {
	set := make(map[string]any, len(patch))
	var del []string
	for k, v := range patch {
		if v == nil {
			del = append(del, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		set[k] = string(raw)
	}
	sort.Strings(del)
	return set, del, nil
}

func decodeHash(fields map[string]string) (Document, error) {
	doc := make(Document, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode field %s: %w", k, err)
		}
		doc[k] = v
	}
	return doc, nil
}
