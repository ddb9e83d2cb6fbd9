package tenant

import "context"

// Store persists tenant data.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
}
