package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
)

var (
	ErrNoContent       = errors.New("request has no content, thread, or series")
	ErrAmbiguousShape  = errors.New("request mixes single, thread, and series shapes")
	ErrMissingTime     = errors.New("request has no target timestamp")
	ErrInvalidChannel  = errors.New("unknown destination channel")
	ErrBadSeriesDay    = errors.New("series day numbers must be >= 1")
	ErrEmptySeriesItem = errors.New("series items need a body")
	ErrUnknownProvider = errors.New("no provider for requested channel")
)

// Expand resolves a request into its delivery rows. Expansion is pure:
// no I/O, and the caller persists the whole batch or nothing.
//
// Day offsets are whole calendar days from the start timestamp, so the
// requested time-of-day is preserved across the thread or series.
func Expand(tenantID string, req Request, caps provider.Capabilities, providerName string) ([]*Delivery, error) {
	if !provider.ValidChannel(req.Channel) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, req.Channel)
	}
	if req.ScheduledAt.IsZero() {
		return nil, ErrMissingTime
	}

	shapes := 0
	if req.Content != "" {
		shapes++
	}
	if len(req.Thread) > 0 {
		shapes++
	}
	if len(req.Series) > 0 {
		shapes++
	}
	switch {
	case shapes == 0:
		return nil, ErrNoContent
	case shapes > 1:
		return nil, ErrAmbiguousShape
	}

	base := Delivery{
		TenantID:   tenantID,
		Channel:    req.Channel,
		Provider:   providerName,
		AudienceID: req.AudienceID,
		Status:     StatusScheduled,
	}

	var out []*Delivery
	switch {
	case len(req.Thread) > 0:
		total := len(req.Thread)
		for i, part := range req.Thread {
			d := base
			d.ID = idgen.WithPrefix("dlv_")
			d.Content = part
			d.Subject = req.Subject
			d.ScheduledAt = req.ScheduledAt.AddDate(0, 0, i)
			d.Metadata = Metadata{ThreadPosition: i + 1, ThreadTotal: total}
			out = append(out, &d)
		}

	case len(req.Series) > 0:
		// Items keep their input order; two items sharing a day number
		// land on the same calendar day, one after the other.
		for _, item := range req.Series {
			if item.Day < 1 {
				return nil, fmt.Errorf("%w: got %d", ErrBadSeriesDay, item.Day)
			}
			if item.Body == "" {
				return nil, ErrEmptySeriesItem
			}
			d := base
			d.ID = idgen.WithPrefix("dlv_")
			d.Content = item.Body
			d.Subject = item.Subject
			if d.Subject == "" {
				d.Subject = req.Subject
			}
			d.ScheduledAt = req.ScheduledAt.AddDate(0, 0, item.Day-1)
			d.Metadata = Metadata{SeriesDay: item.Day}
			out = append(out, &d)
		}

	default:
		d := base
		d.ID = idgen.WithPrefix("dlv_")
		d.Content = req.Content
		d.Subject = req.Subject
		d.ScheduledAt = req.ScheduledAt
		out = append(out, &d)
	}

	// Providers that cannot send directly but can tag hand delivery
	// timing to an external automation. The row still exists at the
	// intended trigger time, but what we store is the trigger identifier
	// plus a human-readable audit payload, not the message body.
	if !caps.SendOrTrigger && caps.Tag {
		for _, d := range out {
			tag := req.Tag
			if tag == "" {
				tag = req.Subject
			}
			d.Metadata.TagTrigger = true
			d.Metadata.TagID = tag
			d.Content = auditPayload(tag, d)
		}
	}

	return out, nil
}

func auditPayload(tag string, d *Delivery) string {
	return fmt.Sprintf("apply tag %q to trigger delivery via %s at %s",
		tag, d.Provider, d.ScheduledAt.Format(time.RFC3339))
}
