// Package analysis stores episode analysis records. Producing the
// analysis itself is an external worker's job; this package owns the
// records and the plan guard in front of creating them.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/pagination"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// Status tracks the external processing lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Analysis is one episode analysis request and its eventual result.
type Analysis struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	EpisodeTitle string    `json:"episodeTitle"`
	AudioURL     string    `json:"audioUrl,omitempty"`
	Transcript   string    `json:"transcript,omitempty"`
	Status       Status    `json:"status"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists analyses. CountInWindow is the quota-facing count.
// List returns up to limit records newest-first, resuming after cursor
// when one is given.
type Store interface {
	Create(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, tenantID, id string) (*Analysis, error)
	List(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) ([]*Analysis, error)
	CountInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error)
}
