package handler

import (
	"net/http"

	"aura-storefront/internal/catalog"
)

// ProductList is the product listing response.
type ProductList struct {
	Products []catalog.Record `json:"products"`
}

// handleListProducts returns the catalog, optionally filtered by ?category=.
// GET /api/products
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	category := catalog.Category(r.URL.Query().Get("category"))
	h.writeJSON(w, http.StatusOK, ProductList{Products: h.productRecords(category)})
}

// handleListScents returns the essences eligible as a free scent.
// GET /api/scents
func (h *Handler) handleListScents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ProductList{Products: h.productRecords(catalog.CategoryEssence)})
}

func (h *Handler) productRecords(category catalog.Category) []catalog.Record {
	out := []catalog.Record{}
	for _, p := range h.catalog.All() {
		if category != "" && p.Category() != category {
			continue
		}
		out = append(out, catalog.ToRecord(p))
	}
	return out
}
