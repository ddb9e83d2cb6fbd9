package usage

import (
	"context"
	"time"
)

// Store answers counting queries for metered resources. Analyses and
// scheduled posts are counted per billing cycle; automations are counted
// while active regardless of cycle.
type Store interface {
	CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error)
	CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error)
	CountActiveAutomations(ctx context.Context, tenantID string) (int, error)
}
