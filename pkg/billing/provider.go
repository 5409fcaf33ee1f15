package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Provider defines the minimal interface for payment provider integrations.
// Providers handle all payment complexity through hosted checkouts and
// customer portals; this toolkit only requests session URLs and normalizes
// webhook events, never touching card data.
type Provider interface {
	// CreateCheckout creates a hosted checkout session for a price.
	CreateCheckout(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// CreatePortal returns a pre-authenticated customer portal session.
	CreatePortal(ctx context.Context, req PortalSessionRequest) (*PortalSession, error)

	// CancelAtPeriodEnd schedules cancellation of a provider subscription at
	// the end of the current billing period.
	CancelAtPeriodEnd(ctx context.Context, providerSubID string) error

	// Resume clears a scheduled cancellation on a provider subscription.
	Resume(ctx context.Context, providerSubID string) error

	// ParseWebhook validates the signature and normalizes the event.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutSessionRequest contains data needed to create a checkout session.
type CheckoutSessionRequest struct {
	PriceID    string    // provider's price identifier from the catalog
	TenantID   uuid.UUID // carried in session metadata for webhook correlation
	CustomerID string    // provider customer ID; empty creates a new customer
	Email      string    // billing email for new customers
	SuccessURL string
	CancelURL  string
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// PortalSessionRequest contains data needed to create a portal session.
type PortalSessionRequest struct {
	CustomerID string
	ReturnURL  string
}

// PortalSession represents a customer portal session.
type PortalSession struct {
	URL string
}

// EventType is a provider-agnostic billing event type.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout_completed"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventPaymentFailed         EventType = "payment_failed"
	// EventIgnored marks provider events this toolkit has no handling for.
	EventIgnored EventType = "ignored"
)

// WebhookEvent is a normalized billing event.
type WebhookEvent struct {
	Type              EventType
	ProviderEvent     string // original provider event name
	TenantID          string // from session/subscription metadata
	SubscriptionID    string // provider's subscription ID
	CustomerID        string // provider's customer ID
	CustomerEmail     string // when the provider includes it (payment failures)
	PriceID           string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}
