package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists automations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the automations table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS automations (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			trigger TEXT NOT NULL,
			action TEXT NOT NULL,
			tag TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_automations_tenant_active
			ON automations(tenant_id, active);
	`)
	if err != nil {
		return fmt.Errorf("migrate automations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, a *Automation) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automations (id, tenant_id, name, trigger, action, tag, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, a.Name, a.Trigger, a.Action, a.Tag, a.Active, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*Automation, error) {
	var a Automation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, trigger, action, tag, active, created_at, updated_at
		FROM automations WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Action,
		&a.Tag, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAutomationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID string) ([]*Automation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, trigger, action, tag, active, created_at, updated_at
		FROM automations WHERE tenant_id = $1
		ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []*Automation
	for rows.Next() {
		var a Automation
		err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Action,
			&a.Tag, &a.Active, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE automations SET active = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("deactivate automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

func (s *PostgresStore) CountActive(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM automations WHERE tenant_id = $1 AND active`,
		tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count automations: %w", err)
	}
	return n, nil
}
