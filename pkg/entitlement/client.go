package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BackendClient is the slice of the EMTChat billing API the Manager consumes.
// Implementations must be safe for concurrent use.
type BackendClient interface {
	// Status fetches the current subscription status snapshot.
	Status(ctx context.Context) (*StatusResponse, error)

	// CreateCheckout requests a hosted checkout session and returns its URL.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)

	// CreatePortal requests a billing portal session and returns its URL.
	CreatePortal(ctx context.Context, returnURL string) (string, error)

	// Cancel schedules cancellation of the active subscription at period end.
	Cancel(ctx context.Context) error

	// Resume clears a scheduled cancellation.
	Resume(ctx context.Context) error
}

// CheckoutRequest is the payload for creating a checkout session.
type CheckoutRequest struct {
	Tier       Tier
	Interval   BillingInterval
	SuccessURL string
	CancelURL  string
}

// StatusResponse is the raw status payload returned by the backend.
// Tier tokens the client does not recognize normalize to free.
type StatusResponse struct {
	Tier         string               `json:"tier"`
	Status       string               `json:"status"`
	Subscription *SubscriptionPayload `json:"subscription,omitempty"`
	Usage        *UsagePayload        `json:"usage,omitempty"`
}

// SubscriptionPayload is the wire form of the active plan metadata.
type SubscriptionPayload struct {
	ID                string    `json:"id"`
	CurrentPeriodEnd  time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
	Interval          string    `json:"interval"`
}

// UsagePayload is the wire form of the usage snapshot.
type UsagePayload struct {
	QueriesUsed  int64 `json:"queriesUsed"`
	QueriesLimit int64 `json:"queriesLimit"`
	StorageUsed  int64 `json:"storageUsed"`
	StorageLimit int64 `json:"storageLimit"`
}

// Config holds HTTP client configuration for the billing API.
type Config struct {
	BaseURL        string        `env:"EMTCHAT_API_URL,required"`
	Token          string        `env:"EMTCHAT_API_TOKEN"`
	RequestTimeout time.Duration `env:"EMTCHAT_API_TIMEOUT" envDefault:"15s"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client, ignoring nil for safety.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client is the HTTP implementation of BackendClient.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a billing API client from config.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, http.MethodGet, "/v1/billing/status", nil, &resp); err != nil {
		return nil, errors.Join(ErrStatusRequestFailed, err)
	}
	return &resp, nil
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	body := map[string]string{
		"tier":       req.Tier.String(),
		"interval":   string(req.Interval),
		"successUrl": req.SuccessURL,
		"cancelUrl":  req.CancelURL,
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/billing/checkout", body, &resp); err != nil {
		return "", errors.Join(ErrCheckoutRequestFailed, err)
	}
	if resp.URL == "" {
		return "", errors.Join(ErrCheckoutRequestFailed, ErrMissingRedirectURL)
	}
	return resp.URL, nil
}

func (c *Client) CreatePortal(ctx context.Context, returnURL string) (string, error) {
	body := map[string]string{"returnUrl": returnURL}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/billing/portal", body, &resp); err != nil {
		return "", errors.Join(ErrPortalRequestFailed, err)
	}
	if resp.URL == "" {
		return "", errors.Join(ErrPortalRequestFailed, ErrMissingRedirectURL)
	}
	return resp.URL, nil
}

func (c *Client) Cancel(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/v1/billing/cancel", nil, nil); err != nil {
		return errors.Join(ErrCancelRequestFailed, err)
	}
	return nil
}

func (c *Client) Resume(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/v1/billing/resume", nil, nil); err != nil {
		return errors.Join(ErrResumeRequestFailed, err)
	}
	return nil
}

// call performs a JSON round trip against the billing API.
// Non-2xx responses become ErrUnexpectedStatusCode; out may be nil for
// endpoints that return no body of interest.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatusCode, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
