package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"aura-storefront/internal/cart"
	"aura-storefront/internal/model"
)

// ErrEmptyCart is returned for a checkout request without lines.
var ErrEmptyCart = errors.New("cart is empty")

// Bridge turns cart contents into a platform checkout session.
// It never mutates the cart and never retries.
type Bridge struct {
	platform Platform
	logger   *slog.Logger
}

func NewBridge(p Platform, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{platform: p, logger: logger}
}

// BuildLines maps each cart line to a platform line. Promo lines reference
// the scent's own variant at quantity 1. A line without a variant fails
// the whole build with a configuration error.
func BuildLines(lines []cart.Line) ([]LineInput, error) {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		info := l.Product.Info()
		if info.VariantRef == "" {
			return nil, model.NewConfigError(fmt.Sprintf("Missing Shopify variant for %s", info.Name))
		}
		qty := l.Quantity
		if l.FreePromo {
			qty = 1
		}
		out = append(out, LineInput{MerchandiseID: info.VariantRef, Quantity: qty})
	}
	return out, nil
}

// Begin validates the cart lines and creates one platform checkout.
func (b *Bridge) Begin(ctx context.Context, lines []cart.Line) (*Session, error) {
	inputs, err := BuildLines(lines)
	if err != nil {
		return nil, err
	}
	return b.Create(ctx, inputs)
}

// Create sends already-mapped lines to the platform.
func (b *Bridge) Create(ctx context.Context, inputs []LineInput) (*Session, error) {
	if err := validateInputs(inputs); err != nil {
		return nil, err
	}
	sess, err := b.platform.CreateCart(ctx, inputs)
	if err != nil {
		return nil, asAPIError(err)
	}
	b.logger.Info("checkout created", "cart_id", sess.CartID, "lines", len(inputs))
	return sess, nil
}

// QuickBuy creates a checkout for a single variant, plus one unit of
// scentRef when set. qty below 1 is treated as 1.
func (b *Bridge) QuickBuy(ctx context.Context, variantRef string, qty int, scentRef string) (*Session, error) {
	if strings.TrimSpace(variantRef) == "" {
		return nil, &model.APIError{
			Code:       "VALIDATION_ERROR",
			Message:    "Missing variant",
			StatusCode: 400,
			Err:        model.ErrInvalidRequest,
		}
	}
	if qty < 1 {
		qty = 1
	}
	inputs := []LineInput{{MerchandiseID: variantRef, Quantity: qty}}
	if scentRef != "" {
		inputs = append(inputs, LineInput{MerchandiseID: scentRef, Quantity: 1})
	}
	return b.Create(ctx, inputs)
}

// Append adds lines to an existing platform cart.
func (b *Bridge) Append(ctx context.Context, cartID string, inputs []LineInput) (*Session, error) {
	if cartID == "" {
		return nil, model.NewValidationError("cartId", "required")
	}
	if err := validateInputs(inputs); err != nil {
		return nil, err
	}
	sess, err := b.platform.AddLines(ctx, cartID, inputs)
	if err != nil {
		return nil, asAPIError(err)
	}
	return sess, nil
}

// Variant looks up the first purchasable variant for a product handle.
func (b *Bridge) Variant(ctx context.Context, handle string) (*Variant, error) {
	v, err := b.platform.FirstAvailableVariant(ctx, handle)
	if err != nil {
		return nil, asAPIError(err)
	}
	return v, nil
}

func validateInputs(inputs []LineInput) error {
	if len(inputs) == 0 {
		return &model.APIError{
			Code:       "EMPTY_CART",
			Message:    "Cart is empty",
			StatusCode: 400,
			Err:        fmt.Errorf("%w: %w", model.ErrInvalidRequest, ErrEmptyCart),
		}
	}
	for i, in := range inputs {
		if in.MerchandiseID == "" {
			return model.NewValidationError(fmt.Sprintf("lines[%d].merchandiseId", i), "required")
		}
		if in.Quantity < 1 {
			return model.NewValidationError(fmt.Sprintf("lines[%d].quantity", i), "must be at least 1")
		}
	}
	return nil
}

// asAPIError passes platform APIErrors through and wraps anything else
// as a generic upstream failure.
func asAPIError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewUpstreamError("checkout", err)
}
