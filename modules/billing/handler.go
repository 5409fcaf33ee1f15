// Package billing exposes the billing service over HTTP. The routes match
// what the entitlement client calls: status, checkout, portal, cancel and
// resume, plus the provider webhook endpoint.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emtchat/emtkit/pkg/billing"
	"github.com/emtchat/emtkit/pkg/entitlement"
)

// TenantResolver extracts the authenticated tenant from a request. The host
// application owns authentication; this module only consumes its result.
type TenantResolver func(r *http.Request) (uuid.UUID, error)

// Webhook payloads can be large but are bounded; anything past this is
// rejected before signature verification.
const maxWebhookBody = 1 << 20

// HandlerOption configures the Router.
type HandlerOption func(*handler)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *handler) {
		if log != nil {
			h.log = log
		}
	}
}

type handler struct {
	svc    billing.Service
	tenant TenantResolver
	log    *slog.Logger
}

// Router mounts the billing API. Panics if svc or tenant is nil.
//
//	r := chi.NewRouter()
//	r.Mount("/v1/billing", billing.Router(svc, tenantFromSession))
func Router(svc billing.Service, tenant TenantResolver, opts ...HandlerOption) chi.Router {
	if svc == nil {
		panic("billing module: Service is required")
	}
	if tenant == nil {
		panic("billing module: TenantResolver is required")
	}

	h := &handler{
		svc:    svc,
		tenant: tenant,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/status", h.status)
	r.Post("/checkout", h.checkout)
	r.Post("/portal", h.portal)
	r.Post("/cancel", h.cancel)
	r.Post("/resume", h.resume)
	r.Post("/webhook", h.webhook)
	return r
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.svc.Status(r.Context(), tenantID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "status request failed", "tenant_id", tenantID, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to load billing status")
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}

type checkoutRequest struct {
	Tier       string `json:"tier"`
	Interval   string `json:"interval"`
	Email      string `json:"email"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	tier, ok := entitlement.TierFromString(req.Tier)
	if !ok {
		h.writeError(w, r, http.StatusBadRequest, "unknown tier")
		return
	}
	interval := entitlement.BillingInterval(req.Interval)
	if interval == "" {
		interval = entitlement.IntervalMonthly
	}

	sess, err := h.svc.Checkout(r.Context(), tenantID, billing.CheckoutRequest{
		Tier:       tier,
		Interval:   interval,
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	switch {
	case errors.Is(err, billing.ErrNoPriceForTier):
		h.writeError(w, r, http.StatusBadRequest, "tier is not purchasable")
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "checkout request failed", "tenant_id", tenantID, "error", err)
		h.writeError(w, r, http.StatusBadGateway, "failed to create checkout session")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"url": sess.URL})
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func (h *handler) portal(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.Portal(r.Context(), tenantID, req.ReturnURL)
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound), errors.Is(err, billing.ErrNoCustomer):
		h.writeError(w, r, http.StatusNotFound, "no billing account for tenant")
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "portal request failed", "tenant_id", tenantID, "error", err)
		h.writeError(w, r, http.StatusBadGateway, "failed to create portal session")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"url": sess.URL})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.svc.Cancel, "cancel")
}

func (h *handler) resume(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.svc.Resume, "resume")
}

func (h *handler) subscriptionAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, tenantID uuid.UUID) error, name string) {
	tenantID, err := h.tenant(r)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	err = action(r.Context(), tenantID)
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		h.writeError(w, r, http.StatusNotFound, "no active subscription")
		return
	case errors.Is(err, billing.ErrNotSupportedByProvider):
		h.writeError(w, r, http.StatusConflict, "manage this subscription in the billing portal")
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), name+" request failed", "tenant_id", tenantID, "error", err)
		h.writeError(w, r, http.StatusBadGateway, "failed to "+name+" subscription")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "failed to read payload")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		signature = r.Header.Get("Paddle-Signature")
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidWebhook) {
			h.writeError(w, r, http.StatusBadRequest, "invalid webhook")
			return
		}
		// Transient failures return 5xx so the provider retries delivery.
		h.log.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, r, status, map[string]string{"error": message})
}
