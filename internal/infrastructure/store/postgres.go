package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores records as JSONB documents in a two-column table.
// Patches use the jsonb concatenation operator, so nested objects are
// replaced and null fields are stripped.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects to PostgreSQL and creates the records table if needed.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool, table: name}
	if _, err := pool.Exec(ctx, p.schemaSQL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return p, nil
}

func (p *Postgres) schemaSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table)
}

func (p *Postgres) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %[1]s (id, doc) VALUES ($1, jsonb_strip_nulls($2::jsonb))
ON CONFLICT (id) DO UPDATE
SET doc = jsonb_strip_nulls(%[1]s.doc || $2::jsonb), updated_at = now()`, p.table)
}

func (p *Postgres) Get(ctx context.Context, id string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", p.table), id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return doc, nil
}

func (p *Postgres) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	if _, err := p.pool.Exec(ctx, p.upsertSQL(), id, string(raw)); err != nil {
		return fmt.Errorf("failed to patch record %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
