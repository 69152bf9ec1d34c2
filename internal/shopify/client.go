// Package shopify is a Storefront GraphQL API client.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"aura-storefront/internal/checkout"
	"aura-storefront/internal/model"
	"aura-storefront/internal/transport"
)

// DefaultAPIVersion is the Storefront API version used when none is configured.
const DefaultAPIVersion = "2024-10"

// Options configures a Client.
type Options struct {
	StoreDomain     string
	StorefrontToken string
	APIVersion      string       // defaults to DefaultAPIVersion
	Endpoint        string       // overrides the URL derived from StoreDomain
	HTTPClient      *http.Client // defaults to transport.NewStorefrontClient
	Logger          *slog.Logger
}

// Client calls the Shopify Storefront API. It implements checkout.Platform.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     *slog.Logger
}

var _ checkout.Platform = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = transport.NewStorefrontClient(transport.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	endpoint := opts.Endpoint
	if endpoint == "" && opts.StoreDomain != "" {
		endpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", opts.StoreDomain, opts.APIVersion)
	}
	return &Client{
		httpClient: opts.HTTPClient,
		endpoint:   endpoint,
		token:      opts.StorefrontToken,
		logger:     opts.Logger,
	}
}

// CreateCart runs cartCreate. GraphQL errors and a cart without a checkout
// URL are upstream errors; the first userError is a platform user error.
func (c *Client) CreateCart(ctx context.Context, lines []checkout.LineInput) (*checkout.Session, error) {
	var resp graphQLResponse[cartCreateData]
	if err := c.query(ctx, mutationCartCreate, map[string]any{"lines": lines}, &resp); err != nil {
		return nil, err
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, err
	}
	var payload *cartPayload
	if resp.Data != nil {
		payload = resp.Data.CartCreate
	}
	return sessionFrom(payload)
}

// AddLines runs cartLinesAdd against an existing cart.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []checkout.LineInput) (*checkout.Session, error) {
	var resp graphQLResponse[cartLinesAddData]
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := c.query(ctx, mutationCartLinesAdd, vars, &resp); err != nil {
		return nil, err
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, err
	}
	var payload *cartPayload
	if resp.Data != nil {
		payload = resp.Data.CartLinesAdd
	}
	return sessionFrom(payload)
}

// ProductByHandle fetches a product and its first ten variants.
// Returns nil without error when no product has the handle.
func (c *Client) ProductByHandle(ctx context.Context, handle string) (*Product, error) {
	var resp graphQLResponse[productByHandleData]
	if err := c.query(ctx, queryProductByHandle, map[string]any{"handle": handle}, &resp); err != nil {
		return nil, err
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Product, nil
}

// FirstAvailableVariant returns the first available-for-sale variant of the
// product, or a not-found error when there is none.
func (c *Client) FirstAvailableVariant(ctx context.Context, handle string) (*checkout.Variant, error) {
	p, err := c.ProductByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if p != nil {
		for _, v := range p.Variants.Nodes {
			if v.AvailableForSale {
				return &checkout.Variant{ID: v.ID, Title: v.Title}, nil
			}
		}
	}
	return nil, &model.APIError{
		Code:       "NOT_FOUND",
		Message:    "No variant available",
		StatusCode: 404,
		Err:        model.ErrNotFound,
	}
}

func sessionFrom(p *cartPayload) (*checkout.Session, error) {
	if p != nil && len(p.UserErrors) > 0 {
		return nil, model.NewPlatformUserError(p.UserErrors[0].Message)
	}
	if p == nil || p.Cart == nil || p.Cart.CheckoutURL == "" {
		return nil, model.NewPlatformError("Unable to create checkout")
	}
	return &checkout.Session{CheckoutURL: p.Cart.CheckoutURL, CartID: p.Cart.ID}, nil
}

func firstError(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Message
	if msg == "" {
		msg = "Shopify error"
	}
	return model.NewPlatformError(msg)
}

// === HTTP Helpers ===

func (c *Client) query(ctx context.Context, query string, vars map[string]any, result any) error {
	if c.endpoint == "" || c.token == "" {
		return model.NewConfigError("Missing Shopify configuration")
	}
	req, err := c.newRequest(ctx, graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	return c.do(req, result)
}

// newRequest creates a GraphQL POST with the storefront access token.
func (c *Client) newRequest(ctx context.Context, body graphQLRequest) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)
	return req, nil
}

// do executes the request and decodes the response.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("Shopify", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewUpstreamError("Shopify", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		c.logger.Error("shopify request failed", "status", resp.StatusCode, "body", truncate(body, 512))
		return parseError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return model.NewUpstreamError("Shopify", fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// parseError converts Storefront API HTTP failures to model.APIError.
func parseError(statusCode int, body []byte) error {
	switch statusCode {
	case 401, 403:
		return model.NewConfigError("Shopify storefront token rejected")
	case 404:
		return model.NewConfigError("Shopify store or API version not found")
	case 429:
		return model.NewRateLimitError("Shopify")
	default:
		return model.NewUpstreamError("Shopify",
			fmt.Errorf("status %d: %s", statusCode, truncate(body, 200)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
