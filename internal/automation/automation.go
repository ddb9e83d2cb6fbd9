// Package automation manages standing automations: persistent rules that
// react to events (a new episode lands, a tag fires) rather than
// consumable per-cycle actions. The plan cap applies to how many are
// active at once.
package automation

import (
	"context"
	"errors"
	"time"
)

var ErrAutomationNotFound = errors.New("automation not found")

// Trigger is what starts an automation run.
type Trigger string

const (
	TriggerNewEpisode Trigger = "new_episode"
	TriggerTagApplied Trigger = "tag_applied"
)

// Action is what an automation does when triggered.
type Action string

const (
	ActionApplyTag     Action = "apply_tag"
	ActionSchedulePost Action = "schedule_post"
)

// Automation is one standing rule owned by a tenant.
type Automation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Trigger   Trigger   `json:"trigger"`
	Action    Action    `json:"action"`
	// Tag is the tag applied or matched, depending on trigger/action.
	Tag       string    `json:"tag,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists automations. CountActive is the quota-facing count:
// deactivated automations free their slot immediately.
type Store interface {
	Create(ctx context.Context, a *Automation) error
	Get(ctx context.Context, tenantID, id string) (*Automation, error)
	List(ctx context.Context, tenantID string) ([]*Automation, error)
	Deactivate(ctx context.Context, tenantID, id string) error
	CountActive(ctx context.Context, tenantID string) (int, error)
}
