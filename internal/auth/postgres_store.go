package auth

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, hash, tenant_id, name, created_at, last_used, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Hash, key.TenantID, key.Name, key.CreatedAt,
		nullTimeValue(key.LastUsed), key.ExpiresAt, key.Revoked,
	)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	return p.scanKey(p.db.QueryRowContext(ctx, `
		SELECT id, hash, tenant_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE hash = $1`, hash))
}

func (p *PostgresStore) GetByTenant(ctx context.Context, tenantID string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, hash, tenant_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		k, err := scanKeyRow(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, key *APIKey) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET name = $1, last_used = $2, expires_at = $3, revoked = $4
		WHERE id = $5`,
		key.Name, nullTimeValue(key.LastUsed), key.ExpiresAt, key.Revoked, key.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanKey(row *sql.Row) (*APIKey, error) {
	k, err := scanKeyRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	return k, err
}

func scanKeyRow(row rowScanner) (*APIKey, error) {
	k := &APIKey{}
	var lastUsed sql.NullTime
	err := row.Scan(&k.ID, &k.Hash, &k.TenantID, &k.Name, &k.CreatedAt,
		&lastUsed, &k.ExpiresAt, &k.Revoked)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		k.LastUsed = lastUsed.Time
	}
	return k, nil
}

func nullTimeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Migrate creates the api_keys table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id         TEXT PRIMARY KEY,
			hash       TEXT NOT NULL UNIQUE,
			tenant_id  TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used  TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			revoked    BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
