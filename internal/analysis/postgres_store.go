package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/pagination"
)

// PostgresStore persists analyses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the analyses table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			episode_title TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_tenant_created
			ON analyses(tenant_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate analyses: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, a *Analysis) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, tenant_id, episode_title, audio_url, transcript, status, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, a.EpisodeTitle, a.AudioURL, a.Transcript, a.Status, a.Summary, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*Analysis, error) {
	var a Analysis
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, episode_title, audio_url, transcript, status, summary, created_at, updated_at
		FROM analyses WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&a.ID, &a.TenantID, &a.EpisodeTitle, &a.AudioURL,
		&a.Transcript, &a.Status, &a.Summary, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) ([]*Analysis, error) {
	query := `
		SELECT id, tenant_id, episode_title, audio_url, transcript, status, summary, created_at, updated_at
		FROM analyses WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		var a Analysis
		err := rows.Scan(&a.ID, &a.TenantID, &a.EpisodeTitle, &a.AudioURL,
			&a.Transcript, &a.Status, &a.Summary, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analyses
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3`,
		tenantID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}
