// Package cart owns the shopping cart state, its derived totals and the
// free-scent promotion ("buy a diffuser, get one essence free").
package cart

import (
	"encoding/json"
	"fmt"

	"aura-storefront/internal/catalog"
)

// freeSuffix distinguishes a promo line's key from the paid line for the same product.
const freeSuffix = "-free"

// Line is one cart entry. Quantity is always in [1, MaxLineQuantity].
// A free-promo line has quantity 1 and LinkedTo names the diffuser it was claimed with.
type Line struct {
	Product   catalog.Product
	Quantity  int
	FreePromo bool
	LinkedTo  string
}

// Key identifies the line for remove/update calls: the product ID, or
// the product ID with a "-free" suffix for promo lines. A scent is free at
// most once per cart, so keys are unique.
func (l Line) Key() string {
	id := l.Product.Info().ID
	if l.FreePromo {
		return id + freeSuffix
	}
	return id
}

// ProductID returns the ID of the line's product.
func (l Line) ProductID() string {
	return l.Product.Info().ID
}

// IsDiffuser reports whether the line is a paid diffuser purchase.
func (l Line) IsDiffuser() bool {
	if l.FreePromo {
		return false
	}
	_, ok := l.Product.(catalog.Diffuser)
	return ok
}

// lineRecord is the persisted form of a Line.
type lineRecord struct {
	Product   catalog.Record `json:"product"`
	Quantity  int            `json:"quantity"`
	FreePromo bool           `json:"is_free_promo,omitempty"`
	LinkedTo  string         `json:"linked_to,omitempty"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineRecord{
		Product:   catalog.ToRecord(l.Product),
		Quantity:  l.Quantity,
		FreePromo: l.FreePromo,
		LinkedTo:  l.LinkedTo,
	})
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var rec lineRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	p, err := catalog.FromRecord(rec.Product)
	if err != nil {
		return err
	}
	if rec.Quantity < 1 || rec.Quantity > MaxLineQuantity {
		return fmt.Errorf("line %s: quantity %d out of range", rec.Product.ID, rec.Quantity)
	}
	*l = Line{
		Product:   p,
		Quantity:  rec.Quantity,
		FreePromo: rec.FreePromo,
		LinkedTo:  rec.LinkedTo,
	}
	return nil
}

// encodeLines serializes the full line array for storage.
func encodeLines(lines []Line) ([]byte, error) {
	return json.Marshal(lines)
}

// decodeLines parses a stored line array.
func decodeLines(data []byte) ([]Line, error) {
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
