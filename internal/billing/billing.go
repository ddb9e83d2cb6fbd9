// Package billing integrates Stripe subscriptions with plan assignment.
//
// Checkout and portal sessions are created on behalf of the authenticated
// tenant; plan changes flow back asynchronously through the webhook. The
// billing-cycle anchor never moves when a plan changes mid-cycle.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	billingportalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

// Errors
var (
	ErrNotConfigured = errors.New("billing: stripe is not configured")
	ErrUnknownPlan   = errors.New("billing: no price configured for plan")
)

// PriceConfig maps paid plans to Stripe price IDs. Empty entries disable
// checkout for that plan.
type PriceConfig struct {
	Starter string
	Pro     string
	Growth  string
}

// Gateway abstracts the Stripe API calls the service makes, so handlers
// and webhook routing can be tested without network access.
type Gateway interface {
	NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type stripeGateway struct{}

func (stripeGateway) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return customer.New(params)
}

func (stripeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

func (stripeGateway) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return billingportalsession.New(params)
}

// Service creates Stripe sessions and applies webhook events to tenants.
type Service struct {
	gateway       Gateway
	tenants       tenant.Store
	webhookSecret string
	planToPrice   map[plan.Plan]string
	priceToPlan   map[string]plan.Plan
}

// NewService wires the Stripe SDK. secretKey may be empty; the service then
// rejects checkout with ErrNotConfigured so the rest of the API keeps working.
func NewService(secretKey, webhookSecret string, prices PriceConfig, tenants tenant.Store) *Service {
	if secretKey != "" {
		stripe.Key = secretKey
	}

	s := &Service{
		gateway:       stripeGateway{},
		tenants:       tenants,
		webhookSecret: webhookSecret,
		planToPrice:   make(map[plan.Plan]string),
		priceToPlan:   make(map[string]plan.Plan),
	}
	for p, price := range map[plan.Plan]string{
		plan.PlanStarter: prices.Starter,
		plan.PlanPro:     prices.Pro,
		plan.PlanGrowth:  prices.Growth,
	} {
		if price != "" {
			s.planToPrice[p] = price
			s.priceToPlan[price] = p
		}
	}
	if secretKey == "" {
		s.gateway = nil
	}
	return s
}

// WithGateway swaps the Stripe client, for tests.
func (s *Service) WithGateway(g Gateway) *Service {
	s.gateway = g
	return s
}

// Configured reports whether Stripe credentials are present.
func (s *Service) Configured() bool {
	return s.gateway != nil
}

// PlanForPrice returns the plan a Stripe price ID maps to.
func (s *Service) PlanForPrice(priceID string) (plan.Plan, bool) {
	p, ok := s.priceToPlan[priceID]
	return p, ok
}

// CheckoutURL creates a subscription checkout session for the tenant and
// returns the redirect URL. The tenant's Stripe customer is created on first
// use and persisted so webhook events can be routed back.
func (s *Service) CheckoutURL(ctx context.Context, t *tenant.Tenant, target plan.Plan, successURL, cancelURL string) (string, error) {
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	priceID, ok := s.planToPrice[target]
	if !ok {
		return "", ErrUnknownPlan
	}

	if t.StripeCustomerID == "" {
		cust, err := s.gateway.NewCustomer(&stripe.CustomerParams{
			Email: stripe.String(t.Email),
			Name:  stripe.String(t.Name),
			Metadata: map[string]string{
				"tenant_id": t.ID,
			},
		})
		if err != nil {
			return "", fmt.Errorf("create stripe customer: %w", err)
		}
		t.StripeCustomerID = cust.ID
		t.UpdatedAt = time.Now()
		if err := s.tenants.Update(ctx, t); err != nil {
			return "", fmt.Errorf("persist stripe customer: %w", err)
		}
	}

	sess, err := s.gateway.NewCheckoutSession(&stripe.CheckoutSessionParams{
		Customer: stripe.String(t.StripeCustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			"tenant_id": t.ID,
			"plan":      string(target),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// PortalURL creates a customer portal session for managing the subscription.
func (s *Service) PortalURL(ctx context.Context, t *tenant.Tenant, returnURL string) (string, error) {
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	if t.StripeCustomerID == "" {
		return "", fmt.Errorf("billing: tenant %s has no stripe customer", t.ID)
	}
	sess, err := s.gateway.NewPortalSession(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(t.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// VerifyWebhook checks the Stripe signature and parses the event. API
// version drift is tolerated: Stripe sends events at the account's
// pinned version, which rarely matches the SDK's.
func (s *Service) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("webhook signature: %w", err)
	}
	return event, nil
}

// HandleEvent applies a verified Stripe event to tenant state. Unhandled
// event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	log := logging.L(ctx)

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}
		target := plan.Plan(sess.Metadata["plan"])
		if !plan.Valid(target) {
			log.Warn("checkout completed with unknown plan", "session_id", sess.ID, "plan", sess.Metadata["plan"])
			return nil
		}
		return s.changePlan(ctx, sess.Metadata["tenant_id"], customerID(sess.Customer), target)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("parse subscription: %w", err)
		}
		target, ok := s.planFromSubscription(&sub)
		if !ok {
			log.Debug("subscription update with no mapped price", "subscription_id", sub.ID)
			return nil
		}
		return s.changePlan(ctx, "", customerID(sub.Customer), target)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("parse subscription: %w", err)
		}
		// Subscription ended; the workspace drops to the free tier.
		return s.changePlan(ctx, "", customerID(sub.Customer), plan.PlanFree)

	default:
		log.Debug("unhandled stripe event", "type", event.Type)
		return nil
	}
}

func (s *Service) planFromSubscription(sub *stripe.Subscription) (plan.Plan, bool) {
	if sub.Items == nil {
		return "", false
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if p, ok := s.priceToPlan[item.Price.ID]; ok {
			return p, true
		}
	}
	return "", false
}

// changePlan finds the tenant by ID or Stripe customer and moves it to the
// target plan. The cycle anchor stays put so mid-cycle upgrades raise caps
// for the current window without resetting usage.
func (s *Service) changePlan(ctx context.Context, tenantID, custID string, target plan.Plan) error {
	var (
		t   *tenant.Tenant
		err error
	)
	if tenantID != "" {
		t, err = s.tenants.Get(ctx, tenantID)
	} else if custID != "" {
		t, err = s.tenants.GetByStripeCustomer(ctx, custID)
	} else {
		return errors.New("billing: event carries no tenant reference")
	}
	if err != nil {
		return fmt.Errorf("resolve tenant for plan change: %w", err)
	}

	if custID != "" && t.StripeCustomerID == "" {
		t.StripeCustomerID = custID
	}
	if t.Plan == target {
		return nil
	}

	previous := t.Plan
	t.Plan = target
	t.UpdatedAt = time.Now()
	if err := s.tenants.Update(ctx, t); err != nil {
		return fmt.Errorf("persist plan change: %w", err)
	}

	logging.L(ctx).Info("tenant plan changed",
		"tenant_id", t.ID,
		"from", previous,
		"to", target,
	)
	return nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
