package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emtchat/emtkit/pkg/entitlement"
)

// PGStore persists subscription records in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed store. Panics if pool is nil because
// a store without a database is a programming error, not a runtime state.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

const pgSelectColumns = `
	tenant_id, tier, billing_interval, status, provider_sub_id,
	provider_customer_id, price_id, cancel_at_period_end,
	current_period_end, created_at, updated_at`

func (s *PGStore) Get(ctx context.Context, tenantID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgSelectColumns+` FROM billing_subscriptions WHERE tenant_id = $1`,
		tenantID)
	return scanRecord(row)
}

func (s *PGStore) GetByProviderSubID(ctx context.Context, providerSubID string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgSelectColumns+` FROM billing_subscriptions WHERE provider_sub_id = $1`,
		providerSubID)
	return scanRecord(row)
}

func (s *PGStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_subscriptions (
			tenant_id, tier, billing_interval, status, provider_sub_id,
			provider_customer_id, price_id, cancel_at_period_end,
			current_period_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			billing_interval = EXCLUDED.billing_interval,
			status = EXCLUDED.status,
			provider_sub_id = EXCLUDED.provider_sub_id,
			provider_customer_id = EXCLUDED.provider_customer_id,
			price_id = EXCLUDED.price_id,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at`,
		rec.TenantID, rec.Tier.String(), string(rec.Interval), rec.Status,
		rec.ProviderSubID, rec.ProviderCustomer, rec.PriceID,
		rec.CancelAtPeriodEnd, rec.CurrentPeriodEnd, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return errors.Join(ErrStoreFailed, fmt.Errorf("save subscription: %w", err))
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var tier, interval string
	err := row.Scan(
		&rec.TenantID, &tier, &interval, &rec.Status, &rec.ProviderSubID,
		&rec.ProviderCustomer, &rec.PriceID, &rec.CancelAtPeriodEnd,
		&rec.CurrentPeriodEnd, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreFailed, fmt.Errorf("scan subscription: %w", err))
	}
	rec.Tier = entitlement.ParseTier(tier)
	rec.Interval = entitlement.BillingInterval(interval)
	return &rec, nil
}
