// Package schedule turns a single scheduling request into the concrete
// delivery rows it implies and persists them atomically, subject to the
// tenant's plan limits.
package schedule

import (
	"errors"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrNotCancelable is returned when the delivery already left the
	// scheduled state; execution and retry are owned elsewhere.
	ErrNotCancelable = errors.New("delivery is not cancelable")
)

// Status is the delivery lifecycle. Scheduled deliveries move to Sent or
// Failed by the executor; Canceled is the only transition this service
// performs itself.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Metadata is the structured extra carried by a delivery. Thread and
// series fields let consumers reconstruct sequence without a parent row.
type Metadata struct {
	ThreadPosition int `json:"threadPosition,omitempty"`
	ThreadTotal    int `json:"threadTotal,omitempty"`
	SeriesDay      int `json:"seriesDay,omitempty"`
	// TagTrigger marks deliveries whose provider defers timing to an
	// external automation; Content then holds the audit payload and
	// TagID the trigger identifier, not a literal message body.
	TagTrigger bool   `json:"tagTrigger,omitempty"`
	TagID      string `json:"tagId,omitempty"`
}

// Delivery is one concrete send event. Each row is individually
// addressable and cancelable; grouping across a thread or series is
// implicit via shared metadata and contiguous day offsets.
type Delivery struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenantId"`
	Channel     provider.Channel `json:"channel"`
	Provider    string           `json:"provider"`
	Subject     string           `json:"subject,omitempty"`
	Content     string           `json:"content"`
	AudienceID  string           `json:"audienceId,omitempty"`
	ScheduledAt time.Time        `json:"scheduledAt"`
	Status      Status           `json:"status"`
	Metadata    Metadata         `json:"metadata"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SeriesItem is one day-numbered entry of a multi-day series. Day 1 is
// the start date.
type SeriesItem struct {
	Day     int    `json:"day"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Request is a single user action to schedule content. Exactly one shape
// applies: Content alone (single), Thread (ordered parts), or Series
// (day-numbered items).
type Request struct {
	Channel     provider.Channel `json:"channel"`
	Provider    string           `json:"provider,omitempty"`
	ScheduledAt time.Time        `json:"scheduledAt"`
	Subject     string           `json:"subject,omitempty"`
	Content     string           `json:"content,omitempty"`
	Thread      []string         `json:"thread,omitempty"`
	Series      []SeriesItem     `json:"series,omitempty"`
	AudienceID  string           `json:"audienceId,omitempty"`
	// Tag names the automation trigger for tag-trigger providers.
	// Defaults to the subject when empty.
	Tag string `json:"tag,omitempty"`
}
