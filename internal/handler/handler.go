// Package handler provides the HTTP and MCP handlers for the storefront API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"aura-storefront/internal/cart"
	"aura-storefront/internal/catalog"
	"aura-storefront/internal/checkout"
	"aura-storefront/internal/model"
	"aura-storefront/internal/session"
	"aura-storefront/internal/webhook"
)

// DefaultProductHandle is looked up by /api/variant-by-handle when no handle is given.
const DefaultProductHandle = "auradroplet"

// Options holds the Handler dependencies. Bridge, Sessions and Catalog are required.
type Options struct {
	Bridge   *checkout.Bridge
	Sessions *cart.Sessions
	Catalog  *catalog.Catalog
	Webhooks http.Handler

	// RateLimit wraps the routes that create platform checkouts. Nil disables it.
	RateLimit func(http.Handler) http.Handler

	DefaultVariantID     string
	DefaultProductHandle string

	Logger *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	bridge         *checkout.Bridge
	sessions       *cart.Sessions
	catalog        *catalog.Catalog
	webhooks       http.Handler
	limit          func(http.Handler) http.Handler
	defaultVariant string
	defaultHandle  string
	logger         *slog.Logger

	// flows holds the checkout in flight for each session.
	flowsMu sync.Mutex
	flows   map[string]*checkout.Flow
}

// New creates a Handler. Without a webhook handler the webhook route answers
// 500 as if no secret were configured.
func New(opts Options) *Handler {
	h := &Handler{
		bridge:         opts.Bridge,
		sessions:       opts.Sessions,
		catalog:        opts.Catalog,
		webhooks:       opts.Webhooks,
		limit:          opts.RateLimit,
		defaultVariant: opts.DefaultVariantID,
		defaultHandle:  opts.DefaultProductHandle,
		logger:         opts.Logger,
		flows:          make(map[string]*checkout.Flow),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.limit == nil {
		h.limit = func(next http.Handler) http.Handler { return next }
	}
	if h.defaultHandle == "" {
		h.defaultHandle = DefaultProductHandle
	}
	if h.webhooks == nil {
		h.webhooks = webhook.NewReceiver("", webhook.NewDefaultDispatcher(h.logger), h.logger)
	}
	return h
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Shopify proxy
	mux.Handle("POST /api/cart/create", h.limit(http.HandlerFunc(h.handleCreateCart)))
	mux.Handle("POST /api/cart/lines", h.limit(http.HandlerFunc(h.handleAddLines)))
	mux.Handle("GET /api/quick-checkout", h.limit(http.HandlerFunc(h.handleQuickCheckout)))
	mux.HandleFunc("GET /api/variant-by-handle", h.handleVariantByHandle)
	mux.Handle("POST /api/webhooks/shopify", h.webhooks)

	// Session cart
	withSession := session.Middleware(h.logger)
	mux.Handle("GET /api/cart", withSession(http.HandlerFunc(h.handleGetCart)))
	mux.Handle("DELETE /api/cart", withSession(http.HandlerFunc(h.handleClearCart)))
	mux.Handle("POST /api/cart/items", withSession(http.HandlerFunc(h.handleAddItem)))
	mux.Handle("PATCH /api/cart/items/{key}", withSession(http.HandlerFunc(h.handleUpdateItem)))
	mux.Handle("DELETE /api/cart/items/{key}", withSession(http.HandlerFunc(h.handleRemoveItem)))
	mux.Handle("GET /api/cart/promo", withSession(http.HandlerFunc(h.handleGetPromo)))
	mux.Handle("POST /api/cart/free-scent", withSession(http.HandlerFunc(h.handleFreeScent)))
	mux.Handle("POST /api/cart/checkout", h.limit(withSession(http.HandlerFunc(h.handleCheckout))))

	// Catalog
	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/scents", h.handleListScents)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := h.toAPIError(err)
	if apiErr.StatusCode >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()))
	}
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: apiErr.Message,
		Code:  apiErr.Code,
	})
}

// toAPIError maps cart and storage failures onto the API taxonomy.
// Anything unrecognized becomes a generic 500.
func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, cart.ErrUnknownProduct):
		return model.NewNotFoundError("product")
	case errors.Is(err, cart.ErrAlreadyClaimed):
		return model.NewConflictError("Free scent already claimed for this diffuser")
	case errors.Is(err, cart.ErrScentAlreadyFree):
		return model.NewConflictError("This scent is already free with another diffuser")
	case errors.Is(err, cart.ErrInvalidQuantity):
		return model.NewValidationError("quantity", fmt.Sprintf("must be at most %d per line", cart.MaxLineQuantity))
	case errors.Is(err, cart.ErrDiffuserNotInCart):
		return model.NewValidationError("diffuser_id", "diffuser is not in the cart")
	case errors.Is(err, cart.ErrNotEligible):
		return model.NewValidationError("scent_id", "only essential oils can be claimed free")
	case errors.Is(err, checkout.ErrCheckoutInProgress), errors.Is(err, checkout.ErrInvalidTransition):
		return model.NewConflictError("Checkout already in progress")
	}
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
