package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.stripe.com"

// StripeClient talks to Stripe's checkout session REST API.
type StripeClient struct {
	secretKey        string
	baseURL          string
	allowedCountries []string
	httpClient       *http.Client
}

// StripeOption configures a StripeClient.
type StripeOption func(*StripeClient)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) StripeOption {
	return func(c *StripeClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) StripeOption {
	return func(c *StripeClient) {
		c.httpClient = client
	}
}

// WithAllowedCountries restricts shipping/billing countries on created
// checkout sessions.
func WithAllowedCountries(countries []string) StripeOption {
	return func(c *StripeClient) {
		c.allowedCountries = countries
	}
}

// NewStripeClient creates a Stripe checkout client. The HTTP client
// carries a timeout so a hung provider call fails closed instead of
// stalling the caller.
func NewStripeClient(secretKey string, opts ...StripeOption) *StripeClient {
	c := &StripeClient{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkoutSessionResponse is the subset of Stripe's checkout session
// object this service reads.
type checkoutSessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`         // open | complete | expired
	PaymentStatus string `json:"payment_status"` // paid | unpaid | no_payment_required
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession creates a hosted checkout session in payment
// mode with the given line items.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []LineItem, successURL, cancelURL string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		form.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.PriceMinorUnits, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.ProductName)
		if item.ProductDescription != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.ProductDescription)
		}
	}
	for i, country := range c.allowedCountries {
		form.Set(fmt.Sprintf("shipping_address_collection[allowed_countries][%d]", i), country)
	}

	var session checkoutSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("checkout session %s missing redirect url", session.ID)
	}

	log.Debug().
		Str("session_id", session.ID).
		Msg("Created checkout session")

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// SessionStatus fetches the session and maps Stripe's status pair onto
// the closed SessionState set: complete+paid is completed, expired is
// failed, everything else is still open.
func (c *StripeClient) SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	var session checkoutSessionResponse
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return SessionStatus{}, err
	}

	switch {
	case session.Status == "complete" && session.PaymentStatus != "unpaid":
		return SessionStatus{State: SessionCompleted, Detail: session.PaymentStatus}, nil
	case session.Status == "expired":
		return SessionStatus{State: SessionFailed, Detail: "checkout session expired"}, nil
	default:
		return SessionStatus{State: SessionOpen, Detail: session.Status}, nil
	}
}

// do performs one API request. Transport failures and 5xx answers wrap
// ErrUnavailable so callers can treat them as retryable.
func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: stripe returned status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var apiErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe request failed: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("stripe request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}
