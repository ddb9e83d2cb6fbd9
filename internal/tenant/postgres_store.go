package tenant

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, email, plan, status, stripe_customer_id, cycle_anchor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, strings.ToLower(t.Email), string(t.Plan), string(t.Status),
		nullString(t.StripeCustomerID), nullTime(t.CycleAnchor), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, email, plan, status, stripe_customer_id, cycle_anchor, created_at, updated_at
		FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, email, plan, status, stripe_customer_id, cycle_anchor, created_at, updated_at
		FROM tenants WHERE email = $1`, strings.ToLower(email)))
}

func (p *PostgresStore) GetByStripeCustomer(ctx context.Context, customerID string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, email, plan, status, stripe_customer_id, cycle_anchor, created_at, updated_at
		FROM tenants WHERE stripe_customer_id = $1`, customerID))
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, plan = $2, status = $3, stripe_customer_id = $4, updated_at = $5
		WHERE id = $6`,
		t.Name, string(t.Plan), string(t.Status), nullString(t.StripeCustomerID),
		t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	var (
		planName, status string
		stripeID         sql.NullString
		anchor           sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.Email, &planName, &status, &stripeID, &anchor,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Plan = plan.Plan(planName)
	t.Status = Status(status)
	if stripeID.Valid {
		t.StripeCustomerID = stripeID.String
	}
	if anchor.Valid {
		a := anchor.Time
		t.CycleAnchor = &a
	}
	return t, nil
}

// Migrate creates the tenants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			email              TEXT NOT NULL UNIQUE,
			plan               TEXT NOT NULL DEFAULT 'free',
			status             TEXT NOT NULL DEFAULT 'active',
			stripe_customer_id TEXT,
			cycle_anchor       TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_email ON tenants(email);
		CREATE INDEX IF NOT EXISTS idx_tenants_stripe ON tenants(stripe_customer_id);
	`)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
