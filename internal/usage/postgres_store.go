package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore counts metered resources straight off the domain tables,
// so usage never drifts from the records themselves.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return s.countRow(ctx, `
		SELECT COUNT(*) FROM analyses
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3`,
		tenantID, start, end)
}

func (s *PostgresStore) CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	// Canceled deliveries do not refund quota once the cycle has counted
	// them, but deliveries canceled within the same cycle do.
	return s.countRow(ctx, `
		SELECT COUNT(*) FROM scheduled_deliveries
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		  AND status <> 'canceled'`,
		tenantID, start, end)
}

func (s *PostgresStore) CountActiveAutomations(ctx context.Context, tenantID string) (int, error) {
	return s.countRow(ctx, `
		SELECT COUNT(*) FROM automations
		WHERE tenant_id = $1 AND active`,
		tenantID)
}

func (s *PostgresStore) countRow(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return n, nil
}
