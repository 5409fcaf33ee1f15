package entitlement

import "errors"

var (
	ErrInvalidConfig = errors.New("entitlement: invalid client configuration")

	ErrStatusRequestFailed   = errors.New("entitlement: failed to fetch subscription status")
	ErrCheckoutRequestFailed = errors.New("entitlement: failed to create checkout session")
	ErrPortalRequestFailed   = errors.New("entitlement: failed to create billing portal session")
	ErrCancelRequestFailed   = errors.New("entitlement: failed to cancel subscription")
	ErrResumeRequestFailed   = errors.New("entitlement: failed to resume subscription")

	ErrUnexpectedStatusCode = errors.New("entitlement: unexpected response status code")
	ErrMissingRedirectURL   = errors.New("entitlement: no redirect URL returned by backend")
	ErrRedirectFailed       = errors.New("entitlement: redirect failed")
)
