package checkout

import (
	"context"

	"aura-storefront/internal/model"
)

// Mock implements Platform for testing.
// Each method can be configured via function fields.
type Mock struct {
	CreateCartFunc            func(ctx context.Context, lines []LineInput) (*Session, error)
	AddLinesFunc              func(ctx context.Context, cartID string, lines []LineInput) (*Session, error)
	FirstAvailableVariantFunc func(ctx context.Context, handle string) (*Variant, error)

	// Calls counts CreateCart invocations.
	Calls int
}

// CreateCart calls the configured CreateCartFunc or returns a fixed session.
func (m *Mock) CreateCart(ctx context.Context, lines []LineInput) (*Session, error) {
	m.Calls++
	if m.CreateCartFunc != nil {
		return m.CreateCartFunc(ctx, lines)
	}
	return &Session{
		CheckoutURL: "https://aura.example/checkouts/test",
		CartID:      "gid://shopify/Cart/test",
	}, nil
}

// AddLines calls the configured AddLinesFunc or returns an error.
func (m *Mock) AddLines(ctx context.Context, cartID string, lines []LineInput) (*Session, error) {
	if m.AddLinesFunc != nil {
		return m.AddLinesFunc(ctx, cartID, lines)
	}
	return nil, model.NewNotFoundError("cart")
}

// FirstAvailableVariant calls the configured FirstAvailableVariantFunc or returns an error.
func (m *Mock) FirstAvailableVariant(ctx context.Context, handle string) (*Variant, error) {
	if m.FirstAvailableVariantFunc != nil {
		return m.FirstAvailableVariantFunc(ctx, handle)
	}
	return nil, model.NewNotFoundError("variant")
}
