package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"aura-storefront/internal/cart"
	"aura-storefront/internal/catalog"
	"aura-storefront/internal/checkout"
	"aura-storefront/internal/model"
	"aura-storefront/internal/session"
)

// LineView is a cart line as returned by the cart API.
type LineView struct {
	Key       string         `json:"key"`
	Product   catalog.Record `json:"product"`
	Quantity  int            `json:"quantity"`
	FreePromo bool           `json:"is_free_promo"`
	LinkedTo  string         `json:"linked_to,omitempty"`
	LineTotal int64          `json:"line_total"`
}

// CartView is the full state of a session cart.
type CartView struct {
	SessionID    string             `json:"session_id"`
	Lines        []LineView         `json:"lines"`
	Totals       cart.Totals        `json:"totals"`
	Promo        cart.PromoSnapshot `json:"promo"`
	PendingScent string             `json:"pending_scent,omitempty"`
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

type freeScentRequest struct {
	ScentID    string `json:"scent_id"`
	DiffuserID string `json:"diffuser_id,omitempty"`
}

// handleGetCart returns the session cart.
// GET /api/cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, func(ctx context.Context, id string) (*CartView, error) {
		return h.viewCart(ctx, id)
	})
}

// handleClearCart empties the session cart.
// DELETE /api/cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, h.clearCart)
}

// handleAddItem adds a product to the session cart.
// POST /api/cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		h.writeError(w, r, model.NewValidationError("product_id", "required"))
		return
	}
	h.respondCart(w, r, func(ctx context.Context, id string) (*CartView, error) {
		return h.addItem(ctx, id, req.ProductID, req.Quantity)
	})
}

// handleUpdateItem sets a line quantity; zero or less removes the line.
// PATCH /api/cart/items/{key}
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, r, model.NewValidationError("quantity", "required"))
		return
	}
	h.respondCart(w, r, func(ctx context.Context, id string) (*CartView, error) {
		return h.updateQuantity(ctx, id, key, *req.Quantity)
	})
}

// handleRemoveItem removes a line by key. Unknown keys are not an error.
// DELETE /api/cart/items/{key}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.respondCart(w, r, func(ctx context.Context, id string) (*CartView, error) {
		return h.removeItem(ctx, id, key)
	})
}

// handleGetPromo returns the free-scent promotion state.
// GET /api/cart/promo
func (h *Handler) handleGetPromo(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	store, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, store.Promo())
}

// handleFreeScent claims a free scent. Without a diffuser to attach it to,
// the choice is kept as pending and the response is 202.
// POST /api/cart/free-scent
func (h *Handler) handleFreeScent(w http.ResponseWriter, r *http.Request) {
	var req freeScentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ScentID == "" {
		h.writeError(w, r, model.NewValidationError("scent_id", "required"))
		return
	}

	id, _ := session.FromContext(r.Context())
	view, pending, err := h.claimFreeScent(r.Context(), id, req.ScentID, req.DiffuserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if pending {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, view)
}

// handleCheckout sends the session cart to Shopify and returns the checkout URL.
// The cart itself is left untouched.
// POST /api/cart/checkout
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	sess, err := h.beginCheckout(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// respondCart runs op against the request's session and writes the resulting view.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*CartView, error)) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, r, model.NewValidationError("session", "missing Cart-Session"))
		return
	}
	view, err := op(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// === Cart operations shared by REST and MCP ===

func (h *Handler) viewCart(ctx context.Context, id string) (*CartView, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.render(ctx, id, store)
}

func (h *Handler) addItem(ctx context.Context, id, productID string, qty int) (*CartView, error) {
	p, ok := h.catalog.Get(productID)
	if !ok {
		return nil, model.NewNotFoundError("product")
	}
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.AddToCart(ctx, p, qty); err != nil {
		return nil, err
	}

	if _, ok := p.(catalog.Diffuser); ok {
		claimed, err := cart.NewSelector(store, h.catalog).ClaimPending(ctx)
		if err != nil {
			// The diffuser is in the cart; the scent stays pending for next time.
			h.logger.WarnContext(ctx, "claim pending scent failed",
				slog.String("session", id),
				slog.String("error", err.Error()))
		} else if claimed {
			h.logger.InfoContext(ctx, "pending scent claimed", slog.String("session", id))
		}
	}
	return h.render(ctx, id, store)
}

func (h *Handler) updateQuantity(ctx context.Context, id, key string, qty int) (*CartView, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateQuantity(ctx, key, qty); err != nil {
		return nil, err
	}
	return h.render(ctx, id, store)
}

func (h *Handler) removeItem(ctx context.Context, id, key string) (*CartView, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.RemoveFromCart(ctx, key); err != nil {
		return nil, err
	}
	return h.render(ctx, id, store)
}

func (h *Handler) clearCart(ctx context.Context, id string) (*CartView, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.Clear(ctx); err != nil {
		return nil, err
	}
	return h.render(ctx, id, store)
}

// claimFreeScent reports pending when the scent was saved for a later diffuser.
func (h *Handler) claimFreeScent(ctx context.Context, id, scentID, diffuserID string) (*CartView, bool, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	_, err = cart.NewSelector(store, h.catalog).Select(ctx, scentID, diffuserID)
	pending := errors.Is(err, cart.ErrNoUnclaimedDiffuser)
	if err != nil && !pending {
		return nil, false, err
	}

	view, err := h.render(ctx, id, store)
	if err != nil {
		return nil, false, err
	}
	return view, pending, nil
}

func (h *Handler) beginCheckout(ctx context.Context, id string) (*checkout.Session, error) {
	store, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	flow := h.flowFor(id)
	defer h.releaseFlow(id, flow)

	sess, err := flow.Submit(ctx, store.Lines())
	if err != nil {
		if !errors.Is(err, checkout.ErrCheckoutInProgress) {
			h.logger.WarnContext(ctx, "checkout failed",
				slog.String("session", id),
				slog.String("error", err.Error()))
		}
		return nil, err
	}
	h.logger.InfoContext(ctx, "checkout started",
		slog.String("session", id),
		slog.String("cart_id", sess.CartID))
	return sess, nil
}

// flowFor returns the session's pending or in-flight checkout. A flow that
// has already settled is replaced so the new request starts from Idle.
func (h *Handler) flowFor(id string) *checkout.Flow {
	h.flowsMu.Lock()
	defer h.flowsMu.Unlock()
	if f, ok := h.flows[id]; ok {
		if st := f.State(); st == checkout.Idle || st == checkout.Submitting {
			return f
		}
	}
	f := checkout.NewFlow(h.bridge)
	h.flows[id] = f
	return f
}

// releaseFlow forgets a flow once it has settled so the next checkout
// starts from Idle. A flow still submitting for another request is kept.
func (h *Handler) releaseFlow(id string, f *checkout.Flow) {
	h.flowsMu.Lock()
	defer h.flowsMu.Unlock()
	if f.State() == checkout.Submitting {
		return
	}
	if h.flows[id] == f {
		delete(h.flows, id)
	}
}

// render builds the view from a single snapshot of the store.
func (h *Handler) render(ctx context.Context, id string, store *cart.Store) (*CartView, error) {
	lines, totals, promo := store.Snapshot()
	if promo.UnclaimedDiffuserIDs == nil {
		promo.UnclaimedDiffuserIDs = []string{}
	}

	pending, err := cart.NewSelector(store, h.catalog).Pending(ctx)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		SessionID:    id,
		Lines:        make([]LineView, 0, len(lines)),
		Totals:       totals,
		Promo:        promo,
		PendingScent: pending,
	}
	for _, l := range lines {
		lt := l.Product.Info().Price * int64(l.Quantity)
		if l.FreePromo {
			lt = 0
		}
		view.Lines = append(view.Lines, LineView{
			Key:       l.Key(),
			Product:   catalog.ToRecord(l.Product),
			Quantity:  l.Quantity,
			FreePromo: l.FreePromo,
			LinkedTo:  l.LinkedTo,
			LineTotal: lt,
		})
	}
	return view, nil
}
