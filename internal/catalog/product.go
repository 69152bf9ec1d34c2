// Package catalog defines the purchasable products and the static catalog.
//
// Products are a closed sum type: Diffuser, Essence or Accessory. Callers
// resolve them with a type switch instead of probing for optional fields.
// Values are immutable once built; the catalog only hands out copies.
package catalog

import (
	"fmt"
)

// Category classifies a product for promo eligibility.
type Category string

const (
	CategoryDiffuser Category = "diffuser"
	CategoryEssence  Category = "essence"
	CategoryOther    Category = "other"
)

// Badge is the merchandising label shown on product cards.
type Badge string

const (
	BadgeNone       Badge = ""
	BadgeBestseller Badge = "bestseller"
	BadgeNew        Badge = "new"
	BadgeSale       Badge = "sale"
)

// Info holds the fields every product carries.
// Prices are in cents. CompareAtPrice of 0 means no original price.
type Info struct {
	ID             string
	Name           string
	Price          int64
	CompareAtPrice int64
	Badge          Badge
	Description    string
	Image          string
	Handle         string // Shopify product handle, used for variant lookup
	VariantRef     string // Shopify ProductVariant GID, opaque outside checkout
}

// Product is implemented by Diffuser, Essence and Accessory only.
type Product interface {
	Info() Info
	Category() Category
	sealed()
}

// Diffuser is a device that qualifies for one free essence.
type Diffuser struct {
	Base            Info
	DiscountPercent int
}

// Essence is an essential oil, the only product eligible as a free scent.
type Essence struct {
	Base     Info
	Notes    string // e.g. "Rose · Geranium · Musk"
	VolumeML int
}

// Accessory covers everything else the store sells.
type Accessory struct {
	Base Info
}

func (d Diffuser) Info() Info         { return d.Base }
func (d Diffuser) Category() Category { return CategoryDiffuser }
func (Diffuser) sealed()              {}

func (e Essence) Info() Info         { return e.Base }
func (e Essence) Category() Category { return CategoryEssence }
func (Essence) sealed()              {}

func (a Accessory) Info() Info         { return a.Base }
func (a Accessory) Category() Category { return CategoryOther }
func (Accessory) sealed()              {}

// WithVariant returns a copy of p carrying the given variant reference.
func WithVariant(p Product, variantRef string) Product {
	switch v := p.(type) {
	case Diffuser:
		v.Base.VariantRef = variantRef
		return v
	case Essence:
		v.Base.VariantRef = variantRef
		return v
	case Accessory:
		v.Base.VariantRef = variantRef
		return v
	}
	return p
}

// Record is the flat wire form of a product, used for persistence and JSON APIs.
type Record struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        Category `json:"category"`
	Price           int64    `json:"price"`
	CompareAtPrice  int64    `json:"compare_at_price,omitempty"`
	Badge           Badge    `json:"badge,omitempty"`
	Description     string   `json:"description,omitempty"`
	Image           string   `json:"image,omitempty"`
	Handle          string   `json:"handle,omitempty"`
	VariantRef      string   `json:"variant_ref,omitempty"`
	DiscountPercent int      `json:"discount_percent,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	VolumeML        int      `json:"volume_ml,omitempty"`
}

// ToRecord flattens a product into its wire form.
func ToRecord(p Product) Record {
	info := p.Info()
	rec := Record{
		ID:             info.ID,
		Name:           info.Name,
		Category:       p.Category(),
		Price:          info.Price,
		CompareAtPrice: info.CompareAtPrice,
		Badge:          info.Badge,
		Description:    info.Description,
		Image:          info.Image,
		Handle:         info.Handle,
		VariantRef:     info.VariantRef,
	}
	switch v := p.(type) {
	case Diffuser:
		rec.DiscountPercent = v.DiscountPercent
	case Essence:
		rec.Notes = v.Notes
		rec.VolumeML = v.VolumeML
	}
	return rec
}

// FromRecord rebuilds a product from its wire form.
// Returns an error for a missing ID or an unknown category.
func FromRecord(rec Record) (Product, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("product record missing id")
	}
	info := Info{
		ID:             rec.ID,
		Name:           rec.Name,
		Price:          rec.Price,
		CompareAtPrice: rec.CompareAtPrice,
		Badge:          rec.Badge,
		Description:    rec.Description,
		Image:          rec.Image,
		Handle:         rec.Handle,
		VariantRef:     rec.VariantRef,
	}
	switch rec.Category {
	case CategoryDiffuser:
		return Diffuser{Base: info, DiscountPercent: rec.DiscountPercent}, nil
	case CategoryEssence:
		return Essence{Base: info, Notes: rec.Notes, VolumeML: rec.VolumeML}, nil
	case CategoryOther:
		return Accessory{Base: info}, nil
	default:
		return nil, fmt.Errorf("product %s: unknown category %q", rec.ID, rec.Category)
	}
}
