package shopify

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"aura-storefront/internal/catalog"
)

// maxConcurrentLookups bounds parallel productByHandle calls.
const maxConcurrentLookups = 4

// VariantLookup finds the first purchasable variant for a product handle.
type VariantLookup interface {
	ProductByHandle(ctx context.Context, handle string) (*Product, error)
}

// ResolveVariants looks up variant references for catalog products that
// lack one, by handle. Products whose handle has no available variant are
// left out of the result and reported as unresolved. Any other lookup
// failure aborts the whole resolution.
func ResolveVariants(ctx context.Context, lookup VariantLookup, products []catalog.Product) (refs map[string]string, unresolved []string, err error) {
	refs = make(map[string]string)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for _, p := range products {
		info := p.Info()
		if info.VariantRef != "" {
			continue
		}
		if info.Handle == "" {
			mu.Lock()
			unresolved = append(unresolved, info.ID)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			prod, err := lookup.ProductByHandle(ctx, info.Handle)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", info.Handle, err)
			}
			ref := firstAvailable(prod)

			mu.Lock()
			defer mu.Unlock()
			if ref == "" {
				unresolved = append(unresolved, info.ID)
				return nil
			}
			refs[info.ID] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	slices.Sort(unresolved)
	return refs, unresolved, nil
}

func firstAvailable(p *Product) string {
	if p == nil {
		return ""
	}
	for _, v := range p.Variants.Nodes {
		if v.AvailableForSale {
			return v.ID
		}
	}
	return ""
}
