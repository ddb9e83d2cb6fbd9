package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresConnectionStore persists connections in PostgreSQL.
type PostgresConnectionStore struct {
	db *sql.DB
}

func NewPostgresConnectionStore(db *sql.DB) *PostgresConnectionStore {
	return &PostgresConnectionStore{db: db}
}

// Migrate creates the provider_connections table if needed.
func (s *PostgresConnectionStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS provider_connections (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expires_at TIMESTAMPTZ,
			api_endpoint TEXT NOT NULL DEFAULT '',
			account_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (tenant_id, provider)
		);
		CREATE INDEX IF NOT EXISTS idx_provider_connections_tenant
			ON provider_connections(tenant_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate provider_connections: %w", err)
	}
	return nil
}

func (s *PostgresConnectionStore) Upsert(ctx context.Context, conn *Connection) error {
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_connections
			(id, tenant_id, provider, access_token, refresh_token, token_expires_at, api_endpoint, account_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			api_endpoint = EXCLUDED.api_endpoint,
			account_name = EXCLUDED.account_name,
			updated_at = EXCLUDED.updated_at`,
		conn.ID, conn.TenantID, conn.Provider, conn.AccessToken, conn.RefreshToken,
		nullTime(conn.TokenExpiresAt), conn.APIEndpoint, conn.AccountName, conn.CreatedAt, conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

func (s *PostgresConnectionStore) Get(ctx context.Context, tenantID, providerName string) (*Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, provider, access_token, refresh_token, token_expires_at, api_endpoint, account_name, created_at, updated_at
		FROM provider_connections
		WHERE tenant_id = $1 AND provider = $2`,
		tenantID, providerName)

	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

func (s *PostgresConnectionStore) Delete(ctx context.Context, tenantID, providerName string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM provider_connections WHERE tenant_id = $1 AND provider = $2`,
		tenantID, providerName)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotConnected
	}
	return nil
}

func (s *PostgresConnectionStore) ListByTenant(ctx context.Context, tenantID string) ([]*Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, provider, access_token, refresh_token, token_expires_at, api_endpoint, account_name, created_at, updated_at
		FROM provider_connections
		WHERE tenant_id = $1
		ORDER BY provider`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []*Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*Connection, error) {
	var (
		conn    Connection
		expires sql.NullTime
	)
	err := row.Scan(&conn.ID, &conn.TenantID, &conn.Provider, &conn.AccessToken,
		&conn.RefreshToken, &expires, &conn.APIEndpoint, &conn.AccountName, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		conn.TokenExpiresAt = &expires.Time
	}
	return &conn, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
