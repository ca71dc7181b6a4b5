package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQL stores records as JSON documents. Patches use JSON_MERGE_PATCH,
// which follows the same rules as Merge.
type MySQL struct {
	db    *sql.DB
	table string
}

// NewMySQL connects to MySQL and creates the records table if needed.
func NewMySQL(ctx context.Context, dsn, table string) (*MySQL, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m := &MySQL{db: db, table: name}
	if _, err := db.ExecContext(ctx, m.schemaSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return m, nil
}

func (m *MySQL) schemaSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (\n"+
		"\tid VARCHAR(191) NOT NULL PRIMARY KEY,\n"+
		"\tdoc JSON NOT NULL,\n"+
		"\tupdated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP\n"+
		")", m.table)
}

func (m *MySQL) upsertSQL() string {
	return fmt.Sprintf("INSERT INTO `%[1]s` (id, doc) VALUES (?, JSON_MERGE_PATCH('{}', ?))\n"+
		"ON DUPLICATE KEY UPDATE doc = JSON_MERGE_PATCH(`%[1]s`.doc, ?)", m.table)
}

func (m *MySQL) Get(ctx context.Context, id string) (Document, error) {
	var raw []byte
	query := fmt.Sprintf("SELECT doc FROM `%s` WHERE id = ?", m.table)
	if err := m.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (m *MySQL) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, m.upsertSQL(), id, string(raw), string(raw)); err != nil {
		return fmt.Errorf("failed to patch record %s: %w", id, err)
	}
	return nil
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
