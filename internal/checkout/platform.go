// Package checkout hands a finished cart to the commerce platform and
// tracks the client-side checkout flow.
package checkout

import (
	"context"
)

// LineInput is one platform line item.
type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// Session is a platform cart ready for hosted checkout.
type Session struct {
	CheckoutURL string `json:"checkoutUrl"`
	CartID      string `json:"cartId"`
}

// Variant is a purchasable platform variant.
type Variant struct {
	ID    string `json:"variantId"`
	Title string `json:"title"`
}

// Platform abstracts the commerce platform that owns hosted checkout.
//
// Implementations return *model.APIError values: user errors reported by
// the platform as PLATFORM_USER_ERROR, transport failures as UPSTREAM_ERROR.
type Platform interface {
	// CreateCart creates a platform cart from the lines and returns its checkout URL.
	// Each call creates a distinct cart.
	CreateCart(ctx context.Context, lines []LineInput) (*Session, error)

	// AddLines appends lines to an existing platform cart.
	AddLines(ctx context.Context, cartID string, lines []LineInput) (*Session, error)

	// FirstAvailableVariant returns the first variant of the product with
	// the given handle that is available for sale.
	FirstAvailableVariant(ctx context.Context, handle string) (*Variant, error)
}
