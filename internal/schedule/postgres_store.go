package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists deliveries in PostgreSQL. Batch creation runs
// in a transaction so a mid-batch failure leaves nothing behind.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the scheduled_deliveries table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scheduled_deliveries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			audience_id TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_deliveries_tenant_created
			ON scheduled_deliveries(tenant_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_deliveries_tenant_scheduled
			ON scheduled_deliveries(tenant_id, scheduled_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate scheduled_deliveries: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, deliveries []*Delivery) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, d := range deliveries {
		d.CreatedAt = now
		d.UpdatedAt = now

		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scheduled_deliveries
				(id, tenant_id, channel, provider, subject, content, audience_id, scheduled_at, status, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			d.ID, d.TenantID, d.Channel, d.Provider, d.Subject, d.Content,
			d.AudienceID, d.ScheduledAt, d.Status, meta, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert delivery %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

const deliveryColumns = `id, tenant_id, channel, provider, subject, content, audience_id, scheduled_at, status, metadata, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*Delivery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM scheduled_deliveries
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)

	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID string, from, to time.Time) ([]*Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM scheduled_deliveries
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND scheduled_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND scheduled_at < $%d", len(args))
	}
	query += " ORDER BY scheduled_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Cancel(ctx context.Context, tenantID, id string) error {
	var status Status
	err := s.db.QueryRowContext(ctx, `
		UPDATE scheduled_deliveries
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = $4
		RETURNING status`,
		StatusCanceled, tenantID, id, StatusScheduled).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or already past scheduled; look once more to
		// tell the caller which.
		if _, getErr := s.Get(ctx, tenantID, id); getErr != nil {
			return getErr
		}
		return ErrNotCancelable
	}
	if err != nil {
		return fmt.Errorf("cancel delivery: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountCreatedInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scheduled_deliveries
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		  AND status <> $4`,
		tenantID, start, end, StatusCanceled).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*Delivery, error) {
	var (
		d    Delivery
		meta []byte
	)
	err := row.Scan(&d.ID, &d.TenantID, &d.Channel, &d.Provider, &d.Subject,
		&d.Content, &d.AudienceID, &d.ScheduledAt, &d.Status, &meta,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &d, nil
}
