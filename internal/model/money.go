package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCents converts decimal string amounts (dollars) to cents (int64).
// Used for catalog prices, Shopify MoneyV2 amounts and shipping settings.
// Examples: "99.00" → 9900, "9.99" → 999, "" → 0
func ParseCents(s string) int64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// FormatCents renders cents as a dollar string with two decimals.
// Examples: 999 → "9.99", 4000 → "40.00", -500 → "-5.00"
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
