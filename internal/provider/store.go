package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned when a tenant has no stored connection for
// a provider.
var ErrNotConnected = errors.New("provider not connected")

// Connection is a tenant's stored credential for one provider.
type Connection struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	Provider       string     `json:"provider"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	// APIEndpoint is the per-account API base for providers that shard
	// accounts across datacenters (Mailchimp). Empty for the rest.
	APIEndpoint string `json:"-"`
	AccountName string `json:"accountName,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ConnectionStore persists provider connections. One connection per
// (tenant, provider); Upsert replaces.
type ConnectionStore interface {
	Upsert(ctx context.Context, conn *Connection) error
	Get(ctx context.Context, tenantID, providerName string) (*Connection, error)
	Delete(ctx context.Context, tenantID, providerName string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Connection, error)
}
