// Package provider defines the adapter contract for outbound marketing
// channels. New channels are added by implementing Adapter and registering
// it; calling code dispatches through the contract and never branches on
// provider names.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Channel is the destination a delivery is bound for.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelTwitter   Channel = "twitter"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelInstagram Channel = "instagram"
)

// Channels lists every known channel. Dispatch over channels must handle
// all of them; ValidChannel is the gate at the API boundary.
var Channels = []Channel{ChannelEmail, ChannelTwitter, ChannelLinkedIn, ChannelInstagram}

func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelTwitter, ChannelLinkedIn, ChannelInstagram:
		return true
	}
	return false
}

// Capabilities is the static declaration of what a (channel, provider)
// pair can do. Declared once per adapter; never mutated at runtime.
// Callers consult it before attempting an operation so unsupported paths
// render as fallbacks instead of failures.
type Capabilities struct {
	AuthRedirect  bool `json:"authRedirect"`
	ListAudiences bool `json:"listAudiences"`
	UpsertContact bool `json:"upsertContact"`
	Subscribe     bool `json:"subscribe"`
	Tag           bool `json:"tag"`
	SendOrTrigger bool `json:"sendOrTrigger"`
}

// Fallback names the path a caller should take when an operation is
// unsupported.
type Fallback string

const (
	// FallbackManual means the operation has no API equivalent for this
	// provider and the user must do it in the provider's own UI.
	FallbackManual Fallback = "manual"
	// FallbackNotConfigured means the operation would work but the
	// deployment lacks credentials for this provider.
	FallbackNotConfigured Fallback = "not_configured"
)

// Result is the tagged outcome of every adapter operation. Different
// channels legitimately cannot perform some operations, so "unsupported"
// is data the caller must branch on, not an error.
type Result[T any] struct {
	Supported bool     `json:"supported"`
	Data      T        `json:"data,omitempty"`
	Fallback  Fallback `json:"fallback,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// OK wraps data in a supported result.
func OK[T any](data T) Result[T] {
	return Result[T]{Supported: true, Data: data}
}

// NotSupported builds an unsupported result with a fallback hint.
func NotSupported[T any](fb Fallback, message string) Result[T] {
	return Result[T]{Supported: false, Fallback: fb, Message: message}
}

// Audience is a provider-side contact list or segment.
type Audience struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount,omitempty"`
}

// Contact is a provider-side subscriber record.
type Contact struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
}

// TagApplication records a tag applied to a contact, for audit.
type TagApplication struct {
	TagID string `json:"tagId"`
	Email string `json:"email"`
	// Label is the human-readable tag name stored alongside the id so
	// audit trails stay legible after tags are renamed provider-side.
	Label string `json:"label,omitempty"`
}

// SendRequest is the payload handed to SendOrTrigger.
type SendRequest struct {
	AudienceID string `json:"audienceId,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body"`
}

// SendReceipt identifies what a successful SendOrTrigger produced.
type SendReceipt struct {
	ExternalID string `json:"externalId,omitempty"`
	// Triggered is true when the provider queued an automation trigger
	// rather than sending directly.
	Triggered bool `json:"triggered"`
}

// ConnectionStatus reports whether a tenant has a live connection.
type ConnectionStatus struct {
	Connected   bool      `json:"connected"`
	AccountName string    `json:"accountName,omitempty"`
	ConnectedAt time.Time `json:"connectedAt,omitempty"`
}

// Adapter is the uniform contract every channel backend implements.
// Every operation returns a tagged Result; callers branch on Supported.
type Adapter interface {
	Name() string
	Channel() Channel
	Capabilities() Capabilities

	AuthURL(ctx context.Context, tenantID, state string) Result[string]
	HandleCallback(ctx context.Context, tenantID, code string) Result[Connection]
	Status(ctx context.Context, tenantID string) Result[ConnectionStatus]
	Disconnect(ctx context.Context, tenantID string) Result[bool]

	ListAudiences(ctx context.Context, tenantID string) Result[[]Audience]
	UpsertContact(ctx context.Context, tenantID string, c Contact) Result[Contact]
	Subscribe(ctx context.Context, tenantID, audienceID, email string) Result[bool]
	Tag(ctx context.Context, tenantID, email, tag string) Result[TagApplication]
	SendOrTrigger(ctx context.Context, tenantID string, req SendRequest) Result[SendReceipt]
}

// Registry holds the registered adapters and resolves them by name or by
// channel. Registration happens once at startup; reads are not locked.
type Registry struct {
	byName   map[string]Adapter
	defaults map[Channel]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Adapter),
		defaults: make(map[Channel]string),
	}
}

// Register adds an adapter. The first adapter registered for a channel
// becomes that channel's default.
func (r *Registry) Register(a Adapter) {
	r.byName[a.Name()] = a
	if _, ok := r.defaults[a.Channel()]; !ok {
		r.defaults[a.Channel()] = a.Name()
	}
}

// Get resolves an adapter by provider name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// ForChannel resolves the adapter for a channel, honoring an explicit
// provider choice when given. The chosen provider must actually serve
// the channel.
func (r *Registry) ForChannel(ch Channel, preferred string) (Adapter, error) {
	if preferred != "" {
		a, ok := r.byName[preferred]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", preferred)
		}
		if a.Channel() != ch {
			return nil, fmt.Errorf("provider %q serves channel %q, not %q", preferred, a.Channel(), ch)
		}
		return a, nil
	}
	name, ok := r.defaults[ch]
	if !ok {
		return nil, fmt.Errorf("no provider registered for channel %q", ch)
	}
	return r.byName[name], nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
