package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"aura-storefront/internal/checkout"
)

type createCartRequest struct {
	Lines []checkout.LineInput `json:"lines"`
}

type addLinesRequest struct {
	CartID string               `json:"cartId"`
	Lines  []checkout.LineInput `json:"lines"`
}

// handleCreateCart creates a Shopify cart from already-mapped lines.
// POST /api/cart/create
func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "creating cart", slog.Int("lines", len(req.Lines)))

	sess, err := h.bridge.Create(r.Context(), req.Lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// handleAddLines appends lines to an existing Shopify cart.
// POST /api/cart/lines
func (h *Handler) handleAddLines(w http.ResponseWriter, r *http.Request) {
	var req addLinesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.bridge.Append(r.Context(), req.CartID, req.Lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// handleQuickCheckout creates a single-product checkout and redirects to it.
// GET /api/quick-checkout?variant=&qty=&scent=
func (h *Handler) handleQuickCheckout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	variant := strings.TrimSpace(q.Get("variant"))
	if variant == "" {
		variant = h.defaultVariant
	}
	qty := parseQuantity(q.Get("qty"))
	scent := strings.TrimSpace(q.Get("scent"))

	sess, err := h.bridge.QuickBuy(r.Context(), variant, qty, scent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, sess.CheckoutURL, http.StatusFound)
}

// handleVariantByHandle returns the first purchasable variant of a product.
// GET /api/variant-by-handle?handle=
func (h *Handler) handleVariantByHandle(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(r.URL.Query().Get("handle"))
	if handle == "" {
		handle = h.defaultHandle
	}

	v, err := h.bridge.Variant(r.Context(), handle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// parseQuantity reads the leading decimal digits of raw, ignoring a leading
// '+' and surrounding whitespace. Missing digits, zero, negatives and
// overflow all yield 1.
func parseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
