package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aura-storefront/internal/model"
)

// RemoteClient implements Platform against a running storefront server,
// so a client-side cart can check out through the server's Shopify proxy.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteClient creates a client for the storefront at baseURL.
// A nil httpClient uses a 30s-timeout default.
func NewRemoteClient(baseURL string, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type createRequest struct {
	CartID string      `json:"cartId,omitempty"`
	Lines  []LineInput `json:"lines"`
}

func (c *RemoteClient) CreateCart(ctx context.Context, lines []LineInput) (*Session, error) {
	var sess Session
	if err := c.call(ctx, http.MethodPost, "/api/cart/create", createRequest{Lines: lines}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *RemoteClient) AddLines(ctx context.Context, cartID string, lines []LineInput) (*Session, error) {
	var sess Session
	if err := c.call(ctx, http.MethodPost, "/api/cart/lines", createRequest{CartID: cartID, Lines: lines}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *RemoteClient) FirstAvailableVariant(ctx context.Context, handle string) (*Variant, error) {
	var v Variant
	path := "/api/variant-by-handle?handle=" + url.QueryEscape(handle)
	if err := c.call(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// errorBody mirrors the server's JSON error shape.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *RemoteClient) call(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("storefront", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewUpstreamError("storefront", fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return parseRemoteError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return model.NewUpstreamError("storefront", fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// parseRemoteError rebuilds the server's APIError so callers can match
// sentinels across the wire.
func parseRemoteError(status int, data []byte) error {
	var eb errorBody
	json.Unmarshal(data, &eb) // Best effort parse
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch eb.Code {
	case "PLATFORM_USER_ERROR":
		return model.NewPlatformUserError(msg)
	case "CONFIGURATION_ERROR":
		return model.NewConfigError(msg)
	case "RATE_LIMITED":
		return &model.APIError{Code: eb.Code, Message: msg, StatusCode: status, Err: model.ErrRateLimited}
	}

	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = model.ErrNotFound
	case status == http.StatusConflict:
		sentinel = model.ErrConflict
	case status < 500:
		sentinel = model.ErrInvalidRequest
	default:
		sentinel = model.ErrUpstreamError
	}
	code := eb.Code
	if code == "" {
		code = "HTTP_" + fmt.Sprint(status)
	}
	return &model.APIError{Code: code, Message: msg, StatusCode: status, Err: sentinel}
}
