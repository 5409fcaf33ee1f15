package billing

import "errors"

var (
	ErrInvalidConfig        = errors.New("invalid billing configuration")
	ErrProviderFailed       = errors.New("billing provider request failed")
	ErrInvalidWebhook       = errors.New("invalid webhook payload")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnknownPrice         = errors.New("price not present in catalog")
	ErrNoPriceForTier       = errors.New("no price configured for tier")
	ErrNoCustomer           = errors.New("tenant has no billing customer")
	ErrStoreFailed          = errors.New("subscription store operation failed")
	// ErrNotSupportedByProvider marks operations a provider only exposes
	// through its hosted portal.
	ErrNotSupportedByProvider = errors.New("operation not supported by provider")
)
