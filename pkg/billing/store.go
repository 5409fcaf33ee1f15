package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emtchat/emtkit/pkg/entitlement"
)

// Record is a tenant's subscription row. Each tenant has exactly one record,
// so TenantID is the primary key. Free-tier tenants may have no record at
// all; readers treat absence as free.
type Record struct {
	TenantID          uuid.UUID
	Tier              entitlement.Tier
	Interval          entitlement.BillingInterval
	Status            string
	ProviderSubID     string // empty for free activations
	ProviderCustomer  string
	PriceID           string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the record grants paid entitlements.
func (r *Record) IsActive() bool {
	return r.Status == "active" || r.Status == "trialing"
}

// Store persists subscription records.
type Store interface {
	// Get retrieves a record by tenant ID.
	// Returns ErrSubscriptionNotFound if no record exists.
	Get(ctx context.Context, tenantID uuid.UUID) (*Record, error)

	// GetByProviderSubID retrieves a record by the provider's subscription ID.
	// Returns ErrSubscriptionNotFound if no record exists.
	GetByProviderSubID(ctx context.Context, providerSubID string) (*Record, error)

	// Save creates or updates a record keyed by TenantID.
	Save(ctx context.Context, rec *Record) error
}

// UsageCounters reports per-tenant consumption. Implementations live next to
// the product's query and storage pipelines; the billing service only reads.
type UsageCounters interface {
	// QueriesUsed returns the tenant's query count for the current period.
	QueriesUsed(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// StorageUsed returns the tenant's stored bytes.
	StorageUsed(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
