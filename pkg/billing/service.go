package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emtchat/emtkit/pkg/email"
	"github.com/emtchat/emtkit/pkg/entitlement"
)

// Service is the server-side counterpart of the entitlement client: it
// assembles status snapshots, brokers checkout and portal sessions, and
// applies provider webhooks to the subscription store.
type Service interface {
	// Status assembles the tenant's current tier, subscription metadata and
	// usage snapshot. Tenants without a record are reported as free.
	Status(ctx context.Context, tenantID uuid.UUID) (*entitlement.StatusResponse, error)

	// Checkout starts a tier change. Free targets activate instantly and
	// return the success URL; paid targets return a provider checkout URL.
	Checkout(ctx context.Context, tenantID uuid.UUID, req CheckoutRequest) (*CheckoutSession, error)

	// Portal returns a provider-hosted billing portal URL for the tenant.
	Portal(ctx context.Context, tenantID uuid.UUID, returnURL string) (*PortalSession, error)

	// Cancel schedules the tenant's subscription for end-of-period
	// cancellation. Access continues until the paid period runs out.
	Cancel(ctx context.Context, tenantID uuid.UUID) error

	// Resume clears a pending cancellation before the period ends.
	Resume(ctx context.Context, tenantID uuid.UUID) error

	// HandleWebhook verifies and applies one provider webhook delivery.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// CheckoutRequest is the service-level checkout input, expressed in tiers
// rather than provider price IDs. The catalog does the translation.
type CheckoutRequest struct {
	Tier       entitlement.Tier
	Interval   entitlement.BillingInterval
	Email      string
	SuccessURL string
	CancelURL  string
}

type service struct {
	store           Store
	provider        Provider
	catalog         *Catalog
	counters        UsageCounters
	cache           *StatusCache
	emailSender     email.EmailSender
	log             *slog.Logger
	portalReturnURL string
}

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithUsageCounters attaches per-tenant consumption counters. Without them
// status responses omit the usage block.
func WithUsageCounters(counters UsageCounters) ServiceOption {
	return func(s *service) {
		if counters != nil {
			s.counters = counters
		}
	}
}

// WithStatusCache caches assembled status responses.
func WithStatusCache(cache *StatusCache) ServiceOption {
	return func(s *service) {
		s.cache = cache
	}
}

// WithEmailSender enables dunning notices on payment failures.
func WithEmailSender(sender email.EmailSender) ServiceOption {
	return func(s *service) {
		s.emailSender = sender
	}
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPortalReturnURL sets the URL customers land on after leaving the
// provider portal; it is also linked from dunning emails.
func WithPortalReturnURL(url string) ServiceOption {
	return func(s *service) {
		s.portalReturnURL = url
	}
}

// NewService creates a billing Service. Panics if store, provider or catalog
// is nil to fail fast during initialization.
func NewService(store Store, provider Provider, catalog *Catalog, opts ...ServiceOption) Service {
	if store == nil {
		panic("billing: Store is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}
	if catalog == nil {
		panic("billing: Catalog is required")
	}

	s := &service{
		store:    store,
		provider: provider,
		catalog:  catalog,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Status(ctx context.Context, tenantID uuid.UUID) (*entitlement.StatusResponse, error) {
	if s.cache != nil {
		if cached := s.cache.Get(ctx, tenantID); cached != nil {
			return cached, nil
		}
	}

	status := &entitlement.StatusResponse{
		Tier:   entitlement.TierFree.String(),
		Status: "free",
	}

	rec, err := s.store.Get(ctx, tenantID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		// No record means the tenant never left the free tier.
	case err != nil:
		return nil, err
	case rec.IsActive():
		status.Tier = rec.Tier.String()
		status.Status = rec.Status
		status.Subscription = &entitlement.SubscriptionPayload{
			ID:                rec.ProviderSubID,
			CurrentPeriodEnd:  rec.CurrentPeriodEnd,
			CancelAtPeriodEnd: rec.CancelAtPeriodEnd,
			Interval:          string(rec.Interval),
		}
	default:
		// Lapsed subscriptions report their status but grant free limits.
		status.Status = rec.Status
	}

	if s.counters != nil {
		usage, err := s.collectUsage(ctx, tenantID, entitlement.ParseTier(status.Tier))
		if err != nil {
			// Usage is advisory; a broken counter must not hide the tier.
			s.log.WarnContext(ctx, "failed to collect usage", "tenant_id", tenantID, "error", err)
		} else {
			status.Usage = usage
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, status); err != nil {
			s.log.WarnContext(ctx, "failed to cache status", "tenant_id", tenantID, "error", err)
		}
	}
	return status, nil
}

func (s *service) collectUsage(ctx context.Context, tenantID uuid.UUID, tier entitlement.Tier) (*entitlement.UsagePayload, error) {
	queries, err := s.counters.QueriesUsed(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count queries: %w", err)
	}
	storage, err := s.counters.StorageUsed(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count storage: %w", err)
	}

	limits := tier.Limits()
	return &entitlement.UsagePayload{
		QueriesUsed:  queries,
		QueriesLimit: limits.MonthlyQueries,
		StorageUsed:  storage,
		StorageLimit: limits.StorageBytes,
	}, nil
}

func (s *service) Checkout(ctx context.Context, tenantID uuid.UUID, req CheckoutRequest) (*CheckoutSession, error) {
	// Downgrades to free bypass the provider entirely.
	if req.Tier == entitlement.TierFree {
		now := time.Now().UTC()
		rec := &Record{
			TenantID:  tenantID,
			Tier:      entitlement.TierFree,
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing, err := s.store.Get(ctx, tenantID); err == nil {
			rec.CreatedAt = existing.CreatedAt
			rec.ProviderCustomer = existing.ProviderCustomer
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, err
		}
		s.invalidate(ctx, tenantID)
		return &CheckoutSession{
			URL:       req.SuccessURL,
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}, nil
	}

	priceID, err := s.catalog.PriceID(req.Tier, req.Interval)
	if err != nil {
		return nil, err
	}

	sessionReq := CheckoutSessionRequest{
		PriceID:    priceID,
		TenantID:   tenantID,
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	// Reuse the provider customer so upgrades keep one billing history.
	if existing, err := s.store.Get(ctx, tenantID); err == nil {
		sessionReq.CustomerID = existing.ProviderCustomer
	}

	return s.provider.CreateCheckout(ctx, sessionReq)
}

func (s *service) Portal(ctx context.Context, tenantID uuid.UUID, returnURL string) (*PortalSession, error) {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if rec.ProviderCustomer == "" {
		return nil, ErrNoCustomer
	}
	if returnURL == "" {
		returnURL = s.portalReturnURL
	}
	return s.provider.CreatePortal(ctx, PortalSessionRequest{
		CustomerID: rec.ProviderCustomer,
		ReturnURL:  returnURL,
	})
}

func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if rec.ProviderSubID == "" {
		return ErrSubscriptionNotFound
	}

	if err := s.provider.CancelAtPeriodEnd(ctx, rec.ProviderSubID); err != nil {
		return err
	}

	// Reflect the pending cancellation immediately; the provider webhook
	// will confirm it with authoritative period data.
	rec.CancelAtPeriodEnd = true
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *service) Resume(ctx context.Context, tenantID uuid.UUID) error {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if rec.ProviderSubID == "" {
		return ErrSubscriptionNotFound
	}

	if err := s.provider.Resume(ctx, rec.ProviderSubID); err != nil {
		return err
	}

	rec.CancelAtPeriodEnd = false
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "billing webhook received",
		"type", event.Type, "provider_event", event.ProviderEvent)

	switch event.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, event)
	case EventSubscriptionUpdated, EventSubscriptionCancelled:
		return s.applySubscriptionChange(ctx, event)
	case EventPaymentFailed:
		return s.applyPaymentFailed(ctx, event)
	default:
		return nil
	}
}

func (s *service) applyCheckoutCompleted(ctx context.Context, event *WebhookEvent) error {
	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		return errors.Join(ErrInvalidWebhook, fmt.Errorf("tenant ID %q: %w", event.TenantID, err))
	}
	key, err := s.catalog.KeyForPrice(event.PriceID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec := &Record{
		TenantID:          tenantID,
		Tier:              key.Tier,
		Interval:          key.Interval,
		Status:            "active",
		ProviderSubID:     event.SubscriptionID,
		ProviderCustomer:  event.CustomerID,
		PriceID:           event.PriceID,
		CancelAtPeriodEnd: false,
		CurrentPeriodEnd:  event.CurrentPeriodEnd,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if existing, err := s.store.Get(ctx, tenantID); err == nil {
		rec.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *service) applySubscriptionChange(ctx context.Context, event *WebhookEvent) error {
	rec, err := s.findRecord(ctx, event)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			// Deliveries can arrive out of order; an update for a
			// subscription we never recorded is acknowledged, not retried.
			s.log.WarnContext(ctx, "webhook for unknown subscription",
				"subscription_id", event.SubscriptionID)
			return nil
		}
		return err
	}

	rec.Status = event.Status
	rec.CancelAtPeriodEnd = event.CancelAtPeriodEnd
	if !event.CurrentPeriodEnd.IsZero() {
		rec.CurrentPeriodEnd = event.CurrentPeriodEnd
	}
	if event.PriceID != "" {
		if key, err := s.catalog.KeyForPrice(event.PriceID); err == nil {
			rec.Tier = key.Tier
			rec.Interval = key.Interval
			rec.PriceID = event.PriceID
		}
	}
	if event.Type == EventSubscriptionCancelled {
		rec.Tier = entitlement.TierFree
		rec.Status = "cancelled"
		rec.CancelAtPeriodEnd = false
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.TenantID)
	return nil
}

func (s *service) applyPaymentFailed(ctx context.Context, event *WebhookEvent) error {
	rec, err := s.findRecord(ctx, event)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	rec.Status = "past_due"
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.TenantID)

	if err := s.notifyPaymentFailed(ctx, event); err != nil {
		s.log.ErrorContext(ctx, "failed to send payment failed notice",
			"tenant_id", rec.TenantID, "error", err)
	}
	return nil
}

// findRecord resolves a webhook event to its subscription record, preferring
// the provider subscription ID and falling back to the tenant metadata.
func (s *service) findRecord(ctx context.Context, event *WebhookEvent) (*Record, error) {
	if event.SubscriptionID != "" {
		rec, err := s.store.GetByProviderSubID(ctx, event.SubscriptionID)
		if err == nil || !errors.Is(err, ErrSubscriptionNotFound) {
			return rec, err
		}
	}
	if event.TenantID != "" {
		tenantID, err := uuid.Parse(event.TenantID)
		if err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("tenant ID %q: %w", event.TenantID, err))
		}
		return s.store.Get(ctx, tenantID)
	}
	return nil, ErrSubscriptionNotFound
}

func (s *service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID)
	}
}
