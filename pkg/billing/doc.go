// Package billing implements the server side of subscription management:
// the status endpoint the entitlement client polls, checkout and portal
// session brokering, end-of-period cancellation, and webhook-driven state
// sync with the payment provider.
//
// # Architecture
//
// The package is split along three seams:
//
//   - Provider abstracts the payment vendor. StripeProvider and
//     PaddleProvider are included; both normalize their webhooks into the
//     same WebhookEvent shape.
//   - Store persists one subscription Record per tenant. PGStore and
//     MongoStore are included, and Migrate applies the Postgres schema.
//   - Catalog maps tiers and billing intervals to provider price IDs, and
//     resolves webhook price IDs back to tiers.
//
// Service ties them together and is what HTTP handlers talk to:
//
//	store := billing.NewPGStore(pool)
//	provider, err := billing.NewStripeProvider(stripeCfg)
//	if err != nil { ... }
//	catalog, err := billing.LoadCatalogFile("prices.yaml")
//	if err != nil { ... }
//
//	svc := billing.NewService(store, provider, catalog,
//		billing.WithUsageCounters(counters),
//		billing.WithStatusCache(billing.NewStatusCache(redisClient, 30*time.Second)),
//	)
//
// # Consistency model
//
// Checkout never mutates local state for paid tiers; the provider webhook is
// the source of truth and the record is written when checkout.completed
// arrives. Cancel and Resume write optimistically after the provider call
// succeeds, and the subsequent webhook overwrites with authoritative period
// data. Webhook deliveries for unknown subscriptions are acknowledged and
// logged rather than retried forever.
package billing
