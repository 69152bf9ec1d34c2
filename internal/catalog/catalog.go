package catalog

import (
	"fmt"
)

// Catalog is an ordered, read-only product list indexed by ID.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// New builds a catalog, rejecting empty or duplicate IDs.
func New(products ...Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		id := p.Info().ID
		if id == "" {
			return nil, fmt.Errorf("product with empty id")
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate product id %q", id)
		}
		c.byID[id] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Get returns the product with the given ID.
func (c *Catalog) Get(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.products[i], true
}

// All returns every product in catalog order.
func (c *Catalog) All() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Essences returns the products eligible as a free scent.
func (c *Catalog) Essences() []Essence {
	var out []Essence
	for _, p := range c.products {
		if e, ok := p.(Essence); ok {
			out = append(out, e)
		}
	}
	return out
}

// Diffusers returns the products that qualify for a free scent.
func (c *Catalog) Diffusers() []Diffuser {
	var out []Diffuser
	for _, p := range c.products {
		if d, ok := p.(Diffuser); ok {
			out = append(out, d)
		}
	}
	return out
}

// MissingVariants returns products without a variant reference.
func (c *Catalog) MissingVariants() []Product {
	var out []Product
	for _, p := range c.products {
		if p.Info().VariantRef == "" {
			out = append(out, p)
		}
	}
	return out
}

// WithVariants returns a new catalog where products named in refs
// (product ID → variant GID) carry the given variant reference.
func (c *Catalog) WithVariants(refs map[string]string) *Catalog {
	next := &Catalog{
		products: make([]Product, len(c.products)),
		byID:     c.byID,
	}
	for i, p := range c.products {
		if ref, ok := refs[p.Info().ID]; ok && ref != "" {
			p = WithVariant(p, ref)
		}
		next.products[i] = p
	}
	return next
}
