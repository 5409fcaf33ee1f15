package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds Paddle credentials and webhook verification secret.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider backed by Paddle transactions and the
// Paddle customer portal. Cancellation and resumption go through the hosted
// portal: CancelAtPeriodEnd and Resume return ErrNotSupportedByProvider and
// callers should send the customer to the portal instead.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle provider.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("paddle API key is required"))
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("paddle webhook secret is required"))
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("invalid paddle environment %q", cfg.Environment))
	}
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("create paddle client: %w", err))
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// CreateCheckout creates a Paddle transaction with a hosted checkout URL.
func (p *PaddleProvider) CreateCheckout(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"tenant_id": req.TenantID.String(),
			"price_id":  req.PriceID,
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, errors.Join(ErrProviderFailed, fmt.Errorf("create paddle transaction: %w", err))
	}
	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, errors.Join(ErrProviderFailed, errors.New("no checkout URL returned from paddle"))
	}

	return &CheckoutSession{
		ID:  transaction.ID,
		URL: *transaction.Checkout.URL,
		// Paddle checkout links expire after 24 hours.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// CreatePortal creates a Paddle customer portal session. CustomerID must be
// a Paddle customer ID (ctm_...).
func (p *PaddleProvider) CreatePortal(ctx context.Context, req PortalSessionRequest) (*PortalSession, error) {
	if req.CustomerID == "" {
		return nil, errors.Join(ErrProviderFailed, ErrNoCustomer)
	}

	sess, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: req.CustomerID,
	})
	if err != nil {
		return nil, errors.Join(ErrProviderFailed, fmt.Errorf("create paddle portal session: %w", err))
	}
	if sess.URLs.General.Overview == "" {
		return nil, errors.Join(ErrProviderFailed, errors.New("no portal URL returned from paddle"))
	}

	return &PortalSession{URL: sess.URLs.General.Overview}, nil
}

// CancelAtPeriodEnd is not exposed through the Paddle API surface this
// provider uses; cancellation happens in the customer portal.
func (p *PaddleProvider) CancelAtPeriodEnd(context.Context, string) error {
	return ErrNotSupportedByProvider
}

// Resume is not exposed through the Paddle API surface this provider uses;
// resumption happens in the customer portal.
func (p *PaddleProvider) Resume(context.Context, string) error {
	return ErrNotSupportedByProvider
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("build verification request: %w", err))
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("verify webhook signature: %w", err))
	}
	if !valid {
		return nil, errors.Join(ErrInvalidWebhook, errors.New("webhook signature mismatch"))
	}

	var paddleEvent struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("parse webhook payload: %w", err))
	}

	event := &WebhookEvent{
		Type:          mapPaddleEventType(paddleEvent.EventType),
		ProviderEvent: paddleEvent.EventType,
	}

	data := paddleEvent.Data
	if id, ok := data["id"].(string); ok {
		event.SubscriptionID = id
	}
	if subID, ok := data["subscription_id"].(string); ok {
		event.SubscriptionID = subID
	}
	if custID, ok := data["customer_id"].(string); ok {
		event.CustomerID = custID
	}
	if status, ok := data["status"].(string); ok {
		event.Status = mapPaddleStatus(status)
	}
	if customData, ok := data["custom_data"].(map[string]any); ok {
		if tenantID, ok := customData["tenant_id"].(string); ok {
			event.TenantID = tenantID
		}
		if email, ok := customData["email"].(string); ok {
			event.CustomerEmail = email
		}
	}
	if end, ok := data["current_billing_period"].(map[string]any); ok {
		if endsAt, ok := end["ends_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, endsAt); err == nil {
				event.CurrentPeriodEnd = t
			}
		}
	}
	if scheduled, ok := data["scheduled_change"].(map[string]any); ok {
		if action, ok := scheduled["action"].(string); ok && action == "cancel" {
			event.CancelAtPeriodEnd = true
		}
	}
	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if priceID, ok := price["id"].(string); ok {
					event.PriceID = priceID
				}
			}
			if priceID, ok := item["price_id"].(string); ok {
				event.PriceID = priceID
			}
		}
	}

	return event, nil
}

func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.created", "subscription.updated", "subscription.resumed":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCancelled
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventIgnored
	}
}

func mapPaddleStatus(status string) string {
	switch strings.ToLower(status) {
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due":
		return "past_due"
	case "canceled", "cancelled":
		return "cancelled"
	default:
		return status
	}
}
