// MCP transport handler for the storefront using the official MCP Go SDK.
// Exposes the session cart and checkout as MCP tools.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"aura-storefront/internal/catalog"
	"aura-storefront/internal/checkout"
	"aura-storefront/internal/session"
)

// === MCP Tool Input/Output Types ===
// Every cart tool takes an optional session_id. When it is empty a new
// session is issued and returned in the result so the agent can reuse it.

// SessionInput is the input schema for tools that only need the cart session.
type SessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session ID returned by a previous call"`
}

// AddToCartInput is the input schema for add_to_cart tool.
type AddToCartInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session ID returned by a previous call"`
	ProductID string `json:"product_id" jsonschema:"catalog product ID"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"units to add, defaults to 1"`
}

// LineKeyInput is the input schema for remove_from_cart tool.
type LineKeyInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session ID returned by a previous call"`
	Key       string `json:"key" jsonschema:"line key from view_cart; free scent lines end in -free"`
}

// UpdateQuantityInput is the input schema for update_quantity tool.
type UpdateQuantityInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session ID returned by a previous call"`
	Key       string `json:"key" jsonschema:"line key from view_cart"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity; 0 removes the line"`
}

// ClaimFreeScentInput is the input schema for claim_free_scent tool.
type ClaimFreeScentInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"cart session ID returned by a previous call"`
	ScentID    string `json:"scent_id" jsonschema:"essence product ID to claim free"`
	DiffuserID string `json:"diffuser_id,omitempty" jsonschema:"diffuser to claim for; defaults to the first unclaimed one"`
}

// ClaimFreeScentOutput reports whether the scent is waiting for a diffuser.
type ClaimFreeScentOutput struct {
	Cart    CartView `json:"cart"`
	Pending bool     `json:"pending"`
}

// ListProductsInput is the input schema for list_products tool.
type ListProductsInput struct {
	Category string `json:"category,omitempty" jsonschema:"diffuser, essence or other"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "aura-storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Aura storefront cart. Every diffuser in the cart earns one free essential oil. " +
				"Use these tools to build a cart, claim free scents, and start a Shopify checkout.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List catalog products, optionally filtered by category.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_cart",
		Description: "Show the cart lines, totals and free-scent promotion state.",
	}, h.mcpViewCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart. Repeated adds of the same product increase its quantity.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a cart line by key. Removing a diffuser also removes its free scent.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set the quantity of a cart line. A quantity of 0 removes it.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every line from the cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "claim_free_scent",
		Description: "Claim a free essential oil for a diffuser in the cart. Without an unclaimed diffuser the choice is saved until one is added.",
	}, h.mcpClaimFreeScent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "begin_checkout",
		Description: "Create a Shopify checkout for the cart and return its URL.",
	}, h.mcpBeginCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *ProductList, error) {
	return nil, &ProductList{Products: h.productRecords(catalog.Category(input.Category))}, nil
}

func (h *Handler) mcpViewCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	view, err := h.viewCart(ctx, id)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, view, nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	view, err := h.addItem(ctx, id, input.ProductID, input.Quantity)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, view, nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input LineKeyInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.Key == "" {
		return nil, nil, fmt.Errorf("key is required")
	}
	view, err := h.removeItem(ctx, id, input.Key)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, view, nil
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.Key == "" {
		return nil, nil, fmt.Errorf("key is required")
	}
	view, err := h.updateQuantity(ctx, id, input.Key, input.Quantity)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, view, nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	view, err := h.clearCart(ctx, id)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, view, nil
}

func (h *Handler) mcpClaimFreeScent(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClaimFreeScentInput,
) (*mcp.CallToolResult, *ClaimFreeScentOutput, error) {
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.ScentID == "" {
		return nil, nil, fmt.Errorf("scent_id is required")
	}
	view, pending, err := h.claimFreeScent(ctx, id, input.ScentID, input.DiffuserID)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, &ClaimFreeScentOutput{Cart: *view, Pending: pending}, nil
}

func (h *Handler) mcpBeginCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *checkout.Session, error) {
	if input.SessionID == "" {
		return nil, nil, fmt.Errorf("session_id is required")
	}
	id, err := mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := h.beginCheckout(ctx, id)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, sess, nil
}

// mcpSession validates a session_id, issuing a new one when empty.
func mcpSession(raw string) (string, error) {
	if raw == "" {
		return session.New(), nil
	}
	id, err := session.ParseID(raw)
	if err != nil {
		return "", fmt.Errorf("invalid session_id: %v", err)
	}
	return id, nil
}

// mcpError converts cart and checkout errors to MCP-friendly errors.
func (h *Handler) mcpError(ctx context.Context, err error) error {
	apiErr := h.toAPIError(err)
	if apiErr.StatusCode >= 500 {
		// Don't leak internal error details
		h.logger.ErrorContext(ctx, "mcp tool failed",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}
