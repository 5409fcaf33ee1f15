package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	billingportalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	stripesubscription "github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds Stripe credentials and webhook verification secret.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider backed by Stripe hosted checkout and
// the Stripe billing portal.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider creates a Stripe provider. The secret key is installed
// globally because the stripe-go client is package scoped.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("stripe secret key is required"))
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("stripe webhook secret is required"))
	}

	stripe.Key = cfg.SecretKey

	return &StripeProvider{webhookSecret: cfg.WebhookSecret}, nil
}

// CreateCheckout creates a Stripe checkout session in subscription mode. The
// tenant ID rides in session metadata so the completion webhook can be
// correlated back without a provider round trip.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata: map[string]string{
			"tenant_id": req.TenantID.String(),
			"price_id":  req.PriceID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"tenant_id": req.TenantID.String(),
			},
		},
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderFailed, fmt.Errorf("create checkout session: %w", err))
	}

	return &CheckoutSession{
		ID:        sess.ID,
		URL:       sess.URL,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// CreatePortal creates a Stripe billing portal session.
func (p *StripeProvider) CreatePortal(ctx context.Context, req PortalSessionRequest) (*PortalSession, error) {
	if req.CustomerID == "" {
		return nil, errors.Join(ErrProviderFailed, ErrNoCustomer)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	sess, err := billingportalsession.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderFailed, fmt.Errorf("create portal session: %w", err))
	}

	return &PortalSession{URL: sess.URL}, nil
}

// CancelAtPeriodEnd schedules the subscription for cancellation at period end.
// Access continues until the paid period runs out.
func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, providerSubID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := stripesubscription.Update(providerSubID, params); err != nil {
		return errors.Join(ErrProviderFailed, fmt.Errorf("cancel subscription %s: %w", providerSubID, err))
	}
	return nil
}

// Resume clears a pending cancellation before the period ends.
func (p *StripeProvider) Resume(ctx context.Context, providerSubID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	if _, err := stripesubscription.Update(providerSubID, params); err != nil {
		return errors.Join(ErrProviderFailed, fmt.Errorf("resume subscription %s: %w", providerSubID, err))
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
// Event types this toolkit does not act on come back as EventIgnored rather
// than an error so the HTTP layer can acknowledge them.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("verify webhook signature: %w", err))
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("unmarshal checkout session: %w", err))
		}
		out := &WebhookEvent{
			Type:          EventCheckoutCompleted,
			ProviderEvent: string(event.Type),
			TenantID:      sess.Metadata["tenant_id"],
			PriceID:       sess.Metadata["price_id"],
			Status:        "active",
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		return out, nil

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("unmarshal subscription: %w", err))
		}
		out := &WebhookEvent{
			Type:              EventSubscriptionUpdated,
			ProviderEvent:     string(event.Type),
			TenantID:          sub.Metadata["tenant_id"],
			SubscriptionID:    sub.ID,
			Status:            mapStripeStatus(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0),
		}
		if event.Type == "customer.subscription.deleted" {
			out.Type = EventSubscriptionCancelled
			out.Status = "cancelled"
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			out.PriceID = sub.Items.Data[0].Price.ID
		}
		return out, nil

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("unmarshal invoice: %w", err))
		}
		out := &WebhookEvent{
			Type:          EventPaymentFailed,
			ProviderEvent: string(event.Type),
			CustomerEmail: invoice.CustomerEmail,
			Status:        "past_due",
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}
		if invoice.Customer != nil {
			out.CustomerID = invoice.Customer.ID
		}
		return out, nil

	default:
		return &WebhookEvent{
			Type:          EventIgnored,
			ProviderEvent: string(event.Type),
		}, nil
	}
}

func mapStripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return "active"
	case stripe.SubscriptionStatusTrialing:
		return "trialing"
	case stripe.SubscriptionStatusPastDue:
		return "past_due"
	case stripe.SubscriptionStatusCanceled:
		return "cancelled"
	case stripe.SubscriptionStatusUnpaid:
		return "unpaid"
	default:
		return string(status)
	}
}
