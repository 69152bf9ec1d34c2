package cart

// ShippingPolicy is a flat rate waived once the subtotal reaches a threshold.
// Amounts are in cents.
type ShippingPolicy struct {
	FreeThreshold int64
	FlatRate      int64
}

// DefaultShipping ships free from $50.00, otherwise $5.00.
var DefaultShipping = ShippingPolicy{FreeThreshold: 5000, FlatRate: 500}

// Totals are derived from the lines on every read, never stored.
type Totals struct {
	Count                 int   `json:"count"`
	Subtotal              int64 `json:"subtotal"`
	PromoSavings          int64 `json:"promo_savings"`
	Total                 int64 `json:"total"`
	Shipping              int64 `json:"shipping"`
	GrandTotal            int64 `json:"grand_total"`
	FreeShippingRemaining int64 `json:"free_shipping_remaining"`
}

// ComputeTotals sums the lines. Promo lines count at full price in the
// subtotal and come back out as PromoSavings, so Total bills them at zero.
func ComputeTotals(lines []Line, policy ShippingPolicy) Totals {
	var t Totals
	for _, l := range lines {
		price := l.Product.Info().Price
		t.Count += l.Quantity
		t.Subtotal += price * int64(l.Quantity)
		if l.FreePromo {
			t.PromoSavings += price * int64(l.Quantity)
		}
	}
	t.Total = t.Subtotal - t.PromoSavings

	if len(lines) > 0 && t.Subtotal < policy.FreeThreshold {
		t.Shipping = policy.FlatRate
	}
	if t.Subtotal < policy.FreeThreshold {
		t.FreeShippingRemaining = policy.FreeThreshold - t.Subtotal
	}
	t.GrandTotal = t.Total + t.Shipping
	return t
}
