package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Redirector performs the browser-level navigation that completes checkout
// and portal flows. From the manager's perspective a successful redirect is
// terminal: the page navigates away and no further state update is observed.
type Redirector interface {
	Redirect(ctx context.Context, url string) error
}

// RedirectFunc adapts a function to the Redirector interface.
type RedirectFunc func(ctx context.Context, url string) error

func (f RedirectFunc) Redirect(ctx context.Context, url string) error { return f(ctx, url) }

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithCheckoutURLs sets the return URLs passed to checkout sessions.
func WithCheckoutURLs(successURL, cancelURL string) ManagerOption {
	return func(m *Manager) {
		m.successURL = successURL
		m.cancelURL = cancelURL
	}
}

// WithPortalReturnURL sets the URL the billing portal returns to,
// typically the subscription settings page.
func WithPortalReturnURL(url string) ManagerOption {
	return func(m *Manager) {
		m.portalReturnURL = url
	}
}

// Manager owns the subscription state for one session. It is constructed per
// session, never shared between sessions, and holds no persistence: a fresh
// Manager always starts from free/loading until the first successful refresh.
//
// All methods are safe for concurrent use. Failures of network-calling
// methods are recorded in State.Err (and also returned for callers that want
// to branch on them); they never reset previously fetched fields.
type Manager struct {
	mu    sync.Mutex
	state State
	gen   uint64 // refresh generation, guards against stale-response clobbering

	api      BackendClient
	redirect Redirector
	log      *slog.Logger

	successURL      string
	cancelURL       string
	portalReturnURL string
}

// NewManager creates a Manager and performs the initial status refresh.
// Panics if api or redirect is nil to fail fast during initialization.
// A failed initial refresh is recorded in state, not returned: the manager
// is still usable and starts from free-tier defaults.
func NewManager(ctx context.Context, api BackendClient, redirect Redirector, opts ...ManagerOption) *Manager {
	if api == nil {
		panic("entitlement: BackendClient is required")
	}
	if redirect == nil {
		panic("entitlement: Redirector is required")
	}

	m := &Manager{
		api:      api,
		redirect: redirect,
		log:      slog.Default(),
		state: State{
			Tier:    TierFree,
			Limits:  TierFree.Limits(),
			Loading: true,
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	_ = m.RefreshStatus(ctx)

	return m
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// RefreshStatus resynchronizes state with the backend. The whole state is
// replaced on success; on failure only Loading and Err change.
//
// Overlapping refreshes are sequenced by generation: only the result of the
// most recently started refresh is committed, so a slow stale response cannot
// clobber a newer one.
func (m *Manager) RefreshStatus(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.state.Loading = true
	m.state.Err = nil
	m.mu.Unlock()

	resp, err := m.api.Status(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// A newer refresh owns the state now.
		return nil
	}

	if err != nil {
		m.state.Loading = false
		m.state.Err = err
		m.log.WarnContext(ctx, "subscription status refresh failed", "error", err)
		return err
	}

	tier := ParseTier(resp.Tier)
	m.state = State{
		Tier:         tier,
		Status:       resp.Status,
		Limits:       tier.Limits(),
		Subscription: normalizeSubscription(resp.Subscription),
		Usage:        normalizeUsage(resp.Usage),
	}
	return nil
}

// CreateCheckout requests a hosted checkout session for the target tier and
// redirects the browser to it. It does not reject same-tier requests; that
// check belongs to the caller. On success the redirect is terminal and
// Loading intentionally stays set, matching the page navigating away.
func (m *Manager) CreateCheckout(ctx context.Context, tier Tier, interval BillingInterval) error {
	m.begin()

	url, err := m.api.CreateCheckout(ctx, CheckoutRequest{
		Tier:       tier,
		Interval:   interval,
		SuccessURL: m.successURL,
		CancelURL:  m.cancelURL,
	})
	if err != nil {
		return m.fail(ctx, err)
	}

	if err := m.redirect.Redirect(ctx, url); err != nil {
		return m.fail(ctx, errors.Join(ErrRedirectFailed, err))
	}
	return nil
}

// OpenPortal requests a billing portal session and redirects the browser to it.
func (m *Manager) OpenPortal(ctx context.Context) error {
	m.begin()

	url, err := m.api.CreatePortal(ctx, m.portalReturnURL)
	if err != nil {
		return m.fail(ctx, err)
	}

	if err := m.redirect.Redirect(ctx, url); err != nil {
		return m.fail(ctx, errors.Join(ErrRedirectFailed, err))
	}
	return nil
}

// CancelSubscription schedules cancellation at period end, then refreshes
// status so the new CancelAtPeriodEnd flag is observed.
func (m *Manager) CancelSubscription(ctx context.Context) error {
	if err := m.api.Cancel(ctx); err != nil {
		return m.fail(ctx, err)
	}
	return m.RefreshStatus(ctx)
}

// ResumeSubscription clears a scheduled cancellation, then refreshes status.
func (m *Manager) ResumeSubscription(ctx context.Context) error {
	if err := m.api.Resume(ctx); err != nil {
		return m.fail(ctx, err)
	}
	return m.RefreshStatus(ctx)
}

// IsFeatureEnabled reports whether the current tier enables the feature.
// Pure lookup against the static tier table; no network access.
func (m *Manager) IsFeatureEnabled(f Feature) bool {
	m.mu.Lock()
	limits := m.state.Limits
	m.mu.Unlock()
	return limits.HasFeature(f)
}

// UsageWarningLevel derives the warning severity from the current usage
// snapshot. Returns WarningNone when no snapshot is present.
func (m *Manager) UsageWarningLevel() WarningLevel {
	m.mu.Lock()
	usage := m.state.Usage
	m.mu.Unlock()

	if usage == nil {
		return WarningNone
	}
	return usage.WarnLevel()
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.state.Loading = true
	m.state.Err = nil
	m.mu.Unlock()
}

func (m *Manager) fail(ctx context.Context, err error) error {
	m.mu.Lock()
	m.state.Loading = false
	m.state.Err = err
	m.mu.Unlock()
	m.log.WarnContext(ctx, "billing action failed", "error", err)
	return err
}

func normalizeSubscription(p *SubscriptionPayload) *SubscriptionInfo {
	if p == nil || p.ID == "" {
		return nil
	}
	interval := IntervalMonthly
	if p.Interval == string(IntervalYearly) {
		interval = IntervalYearly
	}
	return &SubscriptionInfo{
		ID:                p.ID,
		CurrentPeriodEnd:  p.CurrentPeriodEnd,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		Interval:          interval,
	}
}

func normalizeUsage(p *UsagePayload) *Usage {
	if p == nil {
		return nil
	}
	return &Usage{
		QueriesUsed:  p.QueriesUsed,
		QueriesLimit: p.QueriesLimit,
		StorageUsed:  p.StorageUsed,
		StorageLimit: p.StorageLimit,
	}
}
